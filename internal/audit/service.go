package audit

import (
	"context"
	"fmt"
)

// TimelinePort describes the query operations used by Service.
type TimelinePort interface {
	TimelineWindow(ctx context.Context, q TimelineQuery) ([]Entry, error)
}

// PagingInfo describes the window returned by Timeline.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result wraps timeline rows with paging information.
type Result struct {
	Entries []Entry
	Paging  PagingInfo
}

// Service coordinates audit trail reads.
type Service struct {
	repo TimelinePort
}

// NewService constructs the audit read service.
func NewService(repo TimelinePort) *Service {
	return &Service{repo: repo}
}

// TimelineFilters narrows and pages the trail.
type TimelineFilters struct {
	TimelineQuery
	Page     int
	PageSize int
}

// Timeline returns one page of the trail, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}
	page := filters.Page
	if page <= 0 {
		page = 1
	}
	q := filters.TimelineQuery
	q.Offset = (page - 1) * pageSize
	q.Limit = pageSize + 1
	entries, err := s.repo.TimelineWindow(ctx, q)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// exportWindow caps one export query; Export loops until exhaustion.
const exportWindow = 500

// Export returns the whole filtered trail without paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	q := filters.TimelineQuery
	q.Limit = exportWindow
	var all []Entry
	for {
		q.Offset = len(all)
		entries, err := s.repo.TimelineWindow(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, entries...)
		if len(entries) < exportWindow {
			return all, nil
		}
	}
}
