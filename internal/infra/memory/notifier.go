package memory

import (
	"context"
	"sync"
)

// Notifier is an in-process change signal bus keyed by group, mirroring the
// Redis pub/sub notifier for single-instance and test setups.
type Notifier struct {
	mu   sync.Mutex
	subs map[string]map[chan struct{}]struct{}
}

func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[string]map[chan struct{}]struct{})}
}

func (n *Notifier) Subscribe(_ context.Context, groupID string) (<-chan struct{}, func(), error) {
	ch := make(chan struct{}, 1)
	n.mu.Lock()
	if n.subs[groupID] == nil {
		n.subs[groupID] = make(map[chan struct{}]struct{})
	}
	n.subs[groupID][ch] = struct{}{}
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if set, ok := n.subs[groupID]; ok {
			if _, ok := set[ch]; ok {
				delete(set, ch)
				close(ch)
			}
			if len(set) == 0 {
				delete(n.subs, groupID)
			}
		}
		n.mu.Unlock()
	}
	return ch, cancel, nil
}

func (n *Notifier) Publish(_ context.Context, groupID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for ch := range n.subs[groupID] {
		// A pending tick already means "re-fetch"; don't stack more.
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	return nil
}
