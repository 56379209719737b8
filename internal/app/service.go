package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"quiz-rank-service/internal/domain"

	"golang.org/x/sync/singleflight"
)

// Options tune the repository's failure and freshness behavior.
type Options struct {
	// FetchTimeout bounds one fetch-or-aggregate pass; on expiry the last
	// cached snapshot is served instead of hanging the viewer.
	FetchTimeout time.Duration
	// RetryAttempts bounds transient fetch retries within one pass.
	RetryAttempts int
	// SelfHeal persists fallback-computed snapshots back to the
	// authoritative store so the next reader finds a document.
	SelfHeal bool
}

func (o Options) withDefaults() Options {
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = 10 * time.Second
	}
	if o.RetryAttempts <= 0 {
		o.RetryAttempts = 2
	}
	return o
}

// LeaderboardService is the one entry point the UI layer talks to. It owns
// the cache policy, coalesces concurrent refreshes per group, and runs every
// outgoing snapshot through the live overlay.
type LeaderboardService struct {
	store    SnapshotStore
	cache    SnapshotCache
	builder  SnapshotBuilder
	notifier Notifier
	opts     Options
	sf       singleflight.Group

	mu    sync.Mutex
	feeds map[string]*groupFeed
}

func NewLeaderboardService(store SnapshotStore, cache SnapshotCache, builder SnapshotBuilder, notifier Notifier, opts Options) *LeaderboardService {
	return &LeaderboardService{
		store:    store,
		cache:    cache,
		builder:  builder,
		notifier: notifier,
		opts:     opts.withDefaults(),
		feeds:    make(map[string]*groupFeed),
	}
}

// Load returns the group's leaderboard, overlaid with the viewer's local
// state. Fresh cache hits return immediately; stale hits return immediately
// too while a background refresh runs (stale-while-revalidate); a cold cache
// blocks until fetch or fallback aggregation completes.
func (s *LeaderboardService) Load(ctx context.Context, groupID string, viewer *domain.ViewerState) (*domain.LeaderboardSnapshot, error) {
	snapshot, fresh, err := s.cache.Get(ctx, groupID)
	if err != nil {
		log.Printf("leaderboard: cache read %s: %v", groupID, err)
		snapshot = nil
	}
	if snapshot != nil {
		if !fresh {
			go func() {
				if _, err := s.refresh(context.WithoutCancel(ctx), groupID); err != nil {
					log.Printf("leaderboard: background refresh %s: %v", groupID, err)
				}
			}()
		}
		return ApplyOverlay(snapshot.Renumber(), viewer), nil
	}

	refreshed, err := s.refresh(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ApplyOverlay(refreshed, viewer), nil
}

// Refresh bypasses the freshness window: the cache entry is invalidated and
// a recomputation forced. Used when the viewer explicitly asks for current
// data (pull-to-refresh, group switch).
func (s *LeaderboardService) Refresh(ctx context.Context, groupID string, viewer *domain.ViewerState) (*domain.LeaderboardSnapshot, error) {
	if err := s.cache.Invalidate(ctx, groupID); err != nil {
		log.Printf("leaderboard: cache invalidate %s: %v", groupID, err)
	}
	snapshot, err := s.refresh(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return ApplyOverlay(snapshot, viewer), nil
}

// refresh coalesces concurrent callers for the same group into one
// computation; every waiter gets the single result. The computation itself
// runs detached from the first caller's cancellation: a viewer navigating
// away must not abort a cache write other viewers benefit from.
func (s *LeaderboardService) refresh(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error) {
	ch := s.sf.DoChan(groupID, func() (interface{}, error) {
		return s.computeAndCache(context.WithoutCancel(ctx), groupID)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*domain.LeaderboardSnapshot), nil
	case <-ctx.Done():
		// The in-flight computation keeps running and still lands in cache.
		return nil, ctx.Err()
	}
}

func (s *LeaderboardService) computeAndCache(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error) {
	opCtx, cancel := context.WithTimeout(ctx, s.opts.FetchTimeout)
	defer cancel()

	snapshot, err := s.fetchAuthoritative(opCtx, groupID)
	if errors.Is(err, domain.ErrSnapshotNotFound) {
		snapshot, err = s.builder.Build(opCtx, groupID)
		if err == nil {
			s.selfHeal(ctx, snapshot)
		}
	}
	if err != nil {
		// However stale, a cached leaderboard beats a blank screen.
		if stale, _, cerr := s.cache.Get(ctx, groupID); cerr == nil && stale != nil {
			log.Printf("leaderboard: refresh %s failed, serving last cached snapshot: %v", groupID, err)
			return stale.Renumber(), nil
		}
		return nil, fmt.Errorf("%w: %v", domain.ErrLeaderboardUnavailable, err)
	}

	snapshot = snapshot.Renumber()
	if err := s.cache.Put(ctx, groupID, snapshot); err != nil {
		log.Printf("leaderboard: cache write %s: %v", groupID, err)
	}
	return snapshot, nil
}

func (s *LeaderboardService) fetchAuthoritative(ctx context.Context, groupID string) (*domain.LeaderboardSnapshot, error) {
	var lastErr error
	for attempt := 0; attempt < s.opts.RetryAttempts; attempt++ {
		snapshot, err := s.store.GetSnapshot(ctx, groupID)
		if err == nil || errors.Is(err, domain.ErrSnapshotNotFound) {
			return snapshot, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}
	return nil, lastErr
}

// selfHeal writes a fallback-computed snapshot back under the authoritative
// schema and announces the change. Failures are logged, never surfaced: the
// snapshot in hand is still good for this viewer.
func (s *LeaderboardService) selfHeal(ctx context.Context, snapshot *domain.LeaderboardSnapshot) {
	if !s.opts.SelfHeal {
		return
	}
	if err := s.store.PutSnapshot(ctx, snapshot); err != nil {
		log.Printf("leaderboard: self-heal persist %s: %v", snapshot.GroupID, err)
		return
	}
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, snapshot.GroupID); err != nil {
			log.Printf("leaderboard: self-heal notify %s: %v", snapshot.GroupID, err)
		}
	}
}

type subscriber struct {
	viewer   func() *domain.ViewerState
	onUpdate func(*domain.LeaderboardSnapshot)
	// updates is a one-slot latest-wins mailbox; a slow subscriber only
	// delays itself and intermediate snapshots collapse to the newest.
	updates chan *domain.LeaderboardSnapshot
	stop    chan struct{}
}

// groupFeed fans one notifier subscription out to every viewer of a group.
type groupFeed struct {
	stop func()
	subs map[int]*subscriber
	next int
}

// Subscribe registers onUpdate for the group's live updates. There is at
// most one underlying notifier listener per group: later subscribers share
// it, and it closes when the last one cancels. The viewer func is read at
// delivery time so each update carries the viewer's latest local state.
// A notifier failure degrades to load-on-demand instead of failing the
// viewer; they just won't get pushes.
func (s *LeaderboardService) Subscribe(ctx context.Context, groupID string, viewer func() *domain.ViewerState, onUpdate func(*domain.LeaderboardSnapshot)) (func(), error) {
	s.mu.Lock()
	feed, ok := s.feeds[groupID]
	if !ok {
		feed = &groupFeed{subs: make(map[int]*subscriber)}
		if s.notifier != nil {
			ch, stop, err := s.notifier.Subscribe(context.WithoutCancel(ctx), groupID)
			if err != nil {
				log.Printf("leaderboard: live subscribe %s failed, degrading to on-demand loads: %v", groupID, err)
			} else {
				feed.stop = stop
				go s.pump(groupID, ch)
			}
		}
		s.feeds[groupID] = feed
	}
	id := feed.next
	feed.next++
	sub := &subscriber{
		viewer:   viewer,
		onUpdate: onUpdate,
		updates:  make(chan *domain.LeaderboardSnapshot, 1),
		stop:     make(chan struct{}),
	}
	feed.subs[id] = sub
	s.mu.Unlock()
	go s.runSubscriber(sub)

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(sub.stop)
			s.mu.Lock()
			delete(feed.subs, id)
			last := len(feed.subs) == 0
			if last {
				delete(s.feeds, groupID)
			}
			stop := feed.stop
			s.mu.Unlock()
			if last && stop != nil {
				stop()
			}
		})
	}
	return cancel, nil
}

// ListenerCount reports active feeds; tests use it to verify ref-counting.
func (s *LeaderboardService) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

func (s *LeaderboardService) pump(groupID string, ch <-chan struct{}) {
	for range ch {
		s.deliver(groupID)
	}
}

// deliver reacts to one change notification: drop the cache entry, re-fetch
// the document, then hand each subscriber its own overlaid copy.
func (s *LeaderboardService) deliver(groupID string) {
	ctx := context.Background()
	if err := s.cache.Invalidate(ctx, groupID); err != nil {
		log.Printf("leaderboard: cache invalidate %s: %v", groupID, err)
	}
	snapshot, err := s.refresh(ctx, groupID)
	if err != nil {
		log.Printf("leaderboard: update fetch %s: %v", groupID, err)
		return
	}

	s.mu.Lock()
	feed, ok := s.feeds[groupID]
	if !ok {
		s.mu.Unlock()
		return
	}
	subs := make([]*subscriber, 0, len(feed.subs))
	for _, sub := range feed.subs {
		subs = append(subs, sub)
	}
	s.mu.Unlock()

	for _, sub := range subs {
		fanout(sub, snapshot)
	}
}

// fanout hands a raw snapshot to one subscriber's mailbox without blocking:
// if the subscriber hasn't drained the previous one yet, that stale update
// is replaced so the newest snapshot wins and no other subscriber of the
// group waits behind a slow one.
func fanout(sub *subscriber, snapshot *domain.LeaderboardSnapshot) {
	select {
	case sub.updates <- snapshot:
		return
	default:
	}
	select {
	case <-sub.updates:
	default:
	}
	select {
	case sub.updates <- snapshot:
	default:
	}
}

// runSubscriber drains one subscriber's mailbox, applying the viewer's
// overlay at delivery time so every update carries their latest local state.
func (s *LeaderboardService) runSubscriber(sub *subscriber) {
	for {
		select {
		case snapshot := <-sub.updates:
			var viewer *domain.ViewerState
			if sub.viewer != nil {
				viewer = sub.viewer()
			}
			sub.onUpdate(ApplyOverlay(snapshot, viewer))
		case <-sub.stop:
			return
		}
	}
}
