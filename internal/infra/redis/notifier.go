package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// Notifier carries leaderboard change signals over Redis pub/sub so every
// service instance sees writes made by any of them (or by the scheduled
// producer, which publishes on the same channel).
type Notifier struct {
	client *redis.Client
}

func NewNotifier(client *redis.Client) *Notifier {
	return &Notifier{client: client}
}

func (n *Notifier) Subscribe(ctx context.Context, groupID string) (<-chan struct{}, func(), error) {
	sub := n.client.Subscribe(ctx, n.channel(groupID))
	// Force the SUBSCRIBE round-trip so a bad connection fails here, where
	// the caller can still degrade to on-demand loading.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, nil, err
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		for range sub.Channel() {
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	cancel := func() { _ = sub.Close() }
	return out, cancel, nil
}

func (n *Notifier) Publish(ctx context.Context, groupID string) error {
	return n.client.Publish(ctx, n.channel(groupID), "updated").Err()
}

func (n *Notifier) channel(groupID string) string {
	return "rank:updates:" + groupID
}
