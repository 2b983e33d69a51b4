// Package memstore is an in-memory backend. It evaluates the same query
// expressions as the database backends and serves single-node deployments,
// local development and service tests.
package memstore

import (
	"context"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// Store holds every entity in maps guarded by one RWMutex.
type Store struct {
	mu       sync.RWMutex
	logs     []models.LogEntry
	logIndex map[string]int
	orgs     map[string]*models.Organization
	searches map[string]*models.SavedSearch
	now      func() time.Time
}

// New creates an empty Store.
func New() *Store {
	return &Store{
		logIndex: make(map[string]int),
		orgs:     make(map[string]*models.Organization),
		searches: make(map[string]*models.SavedSearch),
		now:      time.Now,
	}
}

// logDoc exposes a log entry to the expression matcher.
type logDoc struct{ e *models.LogEntry }

func (d logDoc) Lookup(f query.Field) (any, bool) {
	switch f {
	case query.FieldID:
		return d.e.ID, true
	case query.FieldOrganizationID:
		return d.e.OrganizationID, true
	case query.FieldAction:
		return d.e.Action, true
	case query.FieldEventType:
		return string(d.e.EventType), true
	case query.FieldDescription:
		return d.e.Description, true
	case query.FieldActorID:
		return d.e.Actor.ID, true
	case query.FieldActorName:
		return d.e.Actor.Name, true
	case query.FieldActorEmail:
		return d.e.Actor.Email, true
	case query.FieldTimestamp:
		return d.e.Timestamp, true
	case query.FieldCreatedAt:
		return d.e.CreatedAt, true
	}

	return nil, false
}

// InsertLog stores a copy of entry, assigning a time-ordered ID and CreatedAt.
func (s *Store) InsertLog(_ context.Context, entry *models.LogEntry) error {
	id, err := uuid.NewV7()
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	entry.ID = id.String()
	entry.CreatedAt = s.now().UTC()
	entry.Timestamp = entry.Timestamp.UTC()
	if entry.Metadata == nil {
		entry.Metadata = map[string]any{}
	}

	stored := *entry
	stored.Metadata = maps.Clone(entry.Metadata)

	s.logIndex[stored.ID] = len(s.logs)
	s.logs = append(s.logs, stored)

	return nil
}

// CountLogs counts entries matching filter.
func (s *Store) CountLogs(_ context.Context, _ string, filter query.Expr) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int64
	for i := range s.logs {
		if query.Match(filter, logDoc{&s.logs[i]}) {
			n++
		}
	}

	return n, nil
}

// FindLogs returns copies of entries matching filter in opts order.
func (s *Store) FindLogs(_ context.Context, _ string, filter query.Expr, opts query.FindOptions) ([]models.LogEntry, error) {
	s.mu.RLock()
	matched := make([]models.LogEntry, 0, 16)
	for i := range s.logs {
		if query.Match(filter, logDoc{&s.logs[i]}) {
			matched = append(matched, s.logs[i])
		}
	}
	s.mu.RUnlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return less(logDoc{&matched[i]}, logDoc{&matched[j]}, opts.Sort)
	})

	if opts.Skip >= len(matched) {
		return []models.LogEntry{}, nil
	}

	matched = matched[opts.Skip:]
	if opts.Limit > 0 && len(matched) > opts.Limit {
		matched = matched[:opts.Limit]
	}

	for i := range matched {
		matched[i].Metadata = maps.Clone(matched[i].Metadata)
	}

	return matched, nil
}

// less orders a before b by sorts, falling through on ties.
func less(a, b query.Document, sorts []query.Sort) bool {
	for _, srt := range sorts {
		av, _ := a.Lookup(srt.Field)
		bv, _ := b.Lookup(srt.Field)

		cmp, ok := query.Compare(av, bv)
		if !ok || cmp == 0 {
			continue
		}

		if srt.Desc {
			return cmp > 0
		}

		return cmp < 0
	}

	return false
}

// GetLog returns a copy of one entry of tenantID.
func (s *Store) GetLog(_ context.Context, tenantID, id string) (*models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.logIndex[id]
	if !ok || s.logs[i].OrganizationID != tenantID {
		return nil, models.ErrLogNotFound
	}

	e := s.logs[i]
	e.Metadata = maps.Clone(e.Metadata)

	return &e, nil
}

// SummarizeLogs counts entries per event type, largest first.
func (s *Store) SummarizeLogs(_ context.Context, tenantID string) ([]models.EventTypeCount, error) {
	s.mu.RLock()
	counts := make(map[models.EventType]int64)
	for i := range s.logs {
		if s.logs[i].OrganizationID == tenantID {
			counts[s.logs[i].EventType]++
		}
	}
	s.mu.RUnlock()

	out := make([]models.EventTypeCount, 0, len(counts))
	for et, n := range counts {
		out = append(out, models.EventTypeCount{EventType: et, Count: n})
	}

	slices.SortFunc(out, func(a, b models.EventTypeCount) int {
		if a.Count != b.Count {
			if a.Count > b.Count {
				return -1
			}

			return 1
		}

		switch {
		case a.EventType < b.EventType:
			return -1
		case a.EventType > b.EventType:
			return 1
		}

		return 0
	})

	return out, nil
}

// Ping always succeeds.
func (s *Store) Ping(context.Context) error { return nil }

// Close is a no-op.
func (s *Store) Close(context.Context) error { return nil }
