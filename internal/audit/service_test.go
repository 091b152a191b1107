package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type stubTimelineRepo struct {
	entries  []Entry
	lastCall TimelineQuery
}

func (s *stubTimelineRepo) TimelineWindow(ctx context.Context, q TimelineQuery) ([]Entry, error) {
	s.lastCall = q
	start := q.Offset
	if start > len(s.entries) {
		return nil, nil
	}
	end := start + q.Limit
	if end > len(s.entries) {
		end = len(s.entries)
	}
	return s.entries[start:end], nil
}

func mockEntries(n int) []Entry {
	entries := make([]Entry, 0, n)
	for i := 0; i < n; i++ {
		entries = append(entries, Entry{
			ID:      int64(n - i),
			Actor:   "u-1",
			Action:  "SUBMIT",
			Target:  "budgets/b-1",
			Outcome: OutcomeAllow,
			At:      time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Add(-time.Duration(i) * time.Hour),
		})
	}
	return entries
}

func TestTimelinePaging(t *testing.T) {
	repo := &stubTimelineRepo{entries: mockEntries(3)}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 1, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 2)
	require.True(t, result.Paging.HasNext)
	require.Equal(t, 2, result.Paging.NextPage)
	require.Equal(t, 3, repo.lastCall.Limit, "window queries one extra row to detect the next page")
	require.Equal(t, 0, repo.lastCall.Offset)
}

func TestTimelineLastPage(t *testing.T) {
	repo := &stubTimelineRepo{entries: mockEntries(3)}
	svc := NewService(repo)
	result, err := svc.Timeline(context.Background(), TimelineFilters{Page: 2, PageSize: 2})
	require.NoError(t, err)
	require.Len(t, result.Entries, 1)
	require.False(t, result.Paging.HasNext)
	require.Equal(t, 1, result.Paging.PrevPage)
}

func TestExportReturnsEverything(t *testing.T) {
	repo := &stubTimelineRepo{entries: mockEntries(7)}
	svc := NewService(repo)
	entries, err := svc.Export(context.Background(), TimelineFilters{})
	require.NoError(t, err)
	require.Len(t, entries, 7)
}
