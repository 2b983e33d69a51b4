package client

import (
	"context"
	"net/url"
	"strconv"
)

// LogService handles audit log entries.
type LogService struct {
	c *Client
}

// Create records an action.
func (s *LogService) Create(ctx context.Context, req CreateLogRequest) (*LogEntry, error) {
	var entry LogEntry
	if err := s.c.post(ctx, "/api/v1/logs", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// List returns one page of entries matching opts.
func (s *LogService) List(ctx context.Context, opts *ListOptions) (*LogPage, error) {
	var page LogPage
	if err := s.c.get(ctx, "/api/v1/logs", opts.values(), &page.Data, &page.Meta); err != nil {
		return nil, err
	}
	return &page, nil
}

// Get returns one entry of the caller's tenant.
func (s *LogService) Get(ctx context.Context, id string) (*LogEntry, error) {
	var entry LogEntry
	if err := s.c.get(ctx, "/api/v1/logs/"+url.PathEscape(id), nil, &entry, nil); err != nil {
		return nil, err
	}
	return &entry, nil
}

// Summary returns entry counts per event type, largest first.
func (s *LogService) Summary(ctx context.Context) ([]EventTypeCount, error) {
	var counts []EventTypeCount
	if err := s.c.get(ctx, "/api/v1/logs/summary", nil, &counts, nil); err != nil {
		return nil, err
	}
	return counts, nil
}

// Each walks every entry matching opts in cursor mode, calling fn for each
// one until fn returns false or the listing ends.
func (s *LogService) Each(ctx context.Context, opts *ListOptions, fn func(LogEntry) bool) error {
	o := ListOptions{}
	if opts != nil {
		o = *opts
	}
	o.Page = 0

	first := true
	for {
		if !first && o.Cursor == "" {
			return nil
		}
		first = false

		page, err := s.List(ctx, &o)
		if err != nil {
			return err
		}

		for _, e := range page.Data {
			if !fn(e) {
				return nil
			}
		}

		if !page.Meta.HasNextPage || page.Meta.NextCursor == nil {
			return nil
		}
		o.Cursor = *page.Meta.NextCursor
	}
}

func (o *ListOptions) values() url.Values {
	params := url.Values{}
	if o == nil {
		return params
	}
	set := func(k, v string) {
		if v != "" {
			params.Set(k, v)
		}
	}
	set("eventType", o.EventType)
	set("userId", o.UserID)
	set("action", o.Action)
	set("search", o.Search)
	set("sortBy", o.SortBy)
	set("order", o.Order)
	set("cursor", o.Cursor)
	if o.Page > 0 && o.Cursor == "" {
		params.Set("page", strconv.Itoa(o.Page))
	}
	if o.Limit > 0 {
		params.Set("limit", strconv.Itoa(o.Limit))
	}
	return params
}
