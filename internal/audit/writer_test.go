package audit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type flakyStore struct {
	mu       sync.Mutex
	failing  bool
	inserted []Entry
}

func (s *flakyStore) Insert(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failing {
		return errors.New("db down")
	}
	s.inserted = append(s.inserted, e)
	return nil
}

func (s *flakyStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inserted)
}

type stubReplay struct {
	mu      sync.Mutex
	entries []Entry
	fail    bool
}

func (s *stubReplay) EnqueueReplay(ctx context.Context, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("redis down")
	}
	s.entries = append(s.entries, e)
	return nil
}

func TestRecordHappyPathInsertsDirectly(t *testing.T) {
	store := &flakyStore{}
	w := NewWriter(store, nil, nil, nil, 8, time.Second)
	w.Record(context.Background(), Entry{Actor: "u-1", Action: "SUBMIT", Target: "budgets/b-1", Outcome: OutcomeAllow})
	require.Equal(t, 1, store.count())
	require.Zero(t, w.QueueDepth())
}

func TestRecordFailureQueuesForRetry(t *testing.T) {
	store := &flakyStore{failing: true}
	w := NewWriter(store, nil, nil, nil, 8, time.Second)
	w.Record(context.Background(), Entry{Actor: "u-1", Action: "SUBMIT", Target: "budgets/b-1", Outcome: OutcomeAllow})
	require.Zero(t, store.count())
	require.Equal(t, 1, w.QueueDepth())

	store.mu.Lock()
	store.failing = false
	store.mu.Unlock()
	w.drain(context.Background())
	require.Equal(t, 1, store.count())
	require.Zero(t, w.QueueDepth())
}

func TestFullQueueDropsOldest(t *testing.T) {
	store := &flakyStore{failing: true}
	w := NewWriter(store, nil, nil, nil, 2, time.Second)
	ctx := context.Background()
	for i, target := range []string{"budgets/b-1", "budgets/b-2", "budgets/b-3"} {
		w.Record(ctx, Entry{Actor: "u-1", Action: "SUBMIT", Target: target, Outcome: OutcomeAllow, At: time.Unix(int64(i), 0)})
	}
	require.Equal(t, 2, w.QueueDepth())

	store.mu.Lock()
	store.failing = false
	store.mu.Unlock()
	w.drain(ctx)
	require.Equal(t, 2, store.count())
	require.Equal(t, "budgets/b-2", store.inserted[0].Target, "oldest entry was dropped, not the newest")
	require.Equal(t, "budgets/b-3", store.inserted[1].Target)
}

func TestDrainHandsPersistentFailuresToReplay(t *testing.T) {
	store := &flakyStore{failing: true}
	replay := &stubReplay{}
	w := NewWriter(store, replay, nil, nil, 8, time.Second)
	ctx := context.Background()
	w.Record(ctx, Entry{Actor: "u-1", Action: "SUBMIT", Target: "budgets/b-1", Outcome: OutcomeAllow})
	w.drain(ctx)
	require.Zero(t, w.QueueDepth())
	require.Len(t, replay.entries, 1)
}

func TestDrainRequeuesWhenReplayAlsoFails(t *testing.T) {
	store := &flakyStore{failing: true}
	replay := &stubReplay{fail: true}
	w := NewWriter(store, replay, nil, nil, 8, time.Second)
	ctx := context.Background()
	w.Record(ctx, Entry{Actor: "u-1", Action: "SUBMIT", Target: "budgets/b-1", Outcome: OutcomeAllow})
	w.drain(ctx)
	require.Equal(t, 1, w.QueueDepth(), "entry survives for the next tick")
}

func TestDecisionStampsTimestamp(t *testing.T) {
	store := &flakyStore{}
	w := NewWriter(store, nil, nil, nil, 8, time.Second)
	w.Decision(context.Background(), "u-1", "RESOURCE_ACCESS", "finance", OutcomeDeny, nil)
	require.Equal(t, 1, store.count())
	require.False(t, store.inserted[0].At.IsZero())
	require.Equal(t, OutcomeDeny, store.inserted[0].Outcome)
}
