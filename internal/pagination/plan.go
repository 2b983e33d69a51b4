package pagination

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/persistorai/auditlog/internal/models"
	"github.com/persistorai/auditlog/internal/query"
)

// Mode is the pagination strategy chosen for a request.
type Mode string

// Pagination modes.
const (
	ModeOffset Mode = "offset"
	ModeCursor Mode = "cursor"
)

// Order is a sort direction.
type Order string

// Sort directions.
const (
	Asc  Order = "asc"
	Desc Order = "desc"
)

// ValueKind is the Go type a sort field's cursor value carries.
type ValueKind int

// Cursor value kinds.
const (
	KindTime ValueKind = iota
	KindString
)

// SortField is an allow-listed sort key.
type SortField struct {
	Field query.Field
	Kind  ValueKind
}

// Limits and defaults.
const (
	DefaultLimit = 10
	MaxLimit     = 100
	maxPage      = 10_000_000
)

// Config configures a Planner.
type Config struct {
	DefaultLimit int
	MaxLimit     int
	DefaultSort  string
	SortFields   map[string]SortField
}

// LogSortFields are the sort keys accepted by log listings.
var LogSortFields = map[string]SortField{
	"timestamp": {Field: query.FieldTimestamp, Kind: KindTime},
	"createdAt": {Field: query.FieldCreatedAt, Kind: KindTime},
	"action":    {Field: query.FieldAction, Kind: KindString},
	"eventType": {Field: query.FieldEventType, Kind: KindString},
}

// LogConfig returns the planner configuration for log listings.
func LogConfig(defaultLimit, maxLimit int) Config {
	return Config{
		DefaultLimit: defaultLimit,
		MaxLimit:     maxLimit,
		DefaultSort:  "timestamp",
		SortFields:   LogSortFields,
	}
}

// Params are the raw, validated pagination inputs of one request.
type Params struct {
	Page   int
	Limit  int
	SortBy string
	Order  Order
	Cursor string
}

// Plan is the resolved strategy for one page fetch.
type Plan struct {
	Mode      Mode
	Page      int
	Limit     int
	SortBy    string
	Field     query.Field
	Desc      bool
	Skip      int
	Predicate query.Expr
}

// Planner validates parameters and produces plans.
type Planner struct {
	cfg Config
}

// NewPlanner creates a Planner, filling zero limits with package defaults.
func NewPlanner(cfg Config) *Planner {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = DefaultLimit
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = MaxLimit
	}
	if cfg.DefaultLimit > cfg.MaxLimit {
		cfg.DefaultLimit = cfg.MaxLimit
	}

	return &Planner{cfg: cfg}
}

// Parse reads page, limit, sortBy, order and cursor from query values.
func (pl *Planner) Parse(v url.Values) (Params, error) {
	p := Params{
		Page:   1,
		Limit:  pl.cfg.DefaultLimit,
		SortBy: pl.cfg.DefaultSort,
		Order:  Desc,
		Cursor: strings.TrimSpace(v.Get("cursor")),
	}

	if raw := v.Get("page"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, models.NewValidationError("page", "must be a positive integer")
		}
		if n > maxPage {
			return Params{}, models.NewValidationError("page", fmt.Sprintf("must not exceed %d", maxPage))
		}
		p.Page = n
	}

	if raw := v.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return Params{}, models.NewValidationError("limit", "must be a positive integer")
		}
		p.Limit = n
	}

	if raw := v.Get("sortBy"); raw != "" {
		p.SortBy = raw
	}

	if raw := v.Get("order"); raw != "" {
		p.Order = Order(strings.ToLower(raw))
	}

	return p, pl.validate(&p)
}

// validate checks p against the allow-lists and clamps the limit.
func (pl *Planner) validate(p *Params) error {
	if p.Page == 0 {
		p.Page = 1
	}

	if p.Limit <= 0 {
		return models.NewValidationError("limit", "must be a positive integer")
	}

	if p.Limit > pl.cfg.MaxLimit {
		p.Limit = pl.cfg.MaxLimit
	}

	if p.SortBy == "" {
		p.SortBy = pl.cfg.DefaultSort
	}

	if _, ok := pl.cfg.SortFields[p.SortBy]; !ok {
		return models.NewValidationError("sortBy", "must be one of "+strings.Join(pl.sortNames(), ", "))
	}

	if p.Order == "" {
		p.Order = Desc
	}

	if p.Order != Asc && p.Order != Desc {
		return models.NewValidationError("order", "must be asc or desc")
	}

	return nil
}

func (pl *Planner) sortNames() []string {
	names := make([]string, 0, len(pl.cfg.SortFields))
	for name := range pl.cfg.SortFields {
		names = append(names, name)
	}

	slices.Sort(names)

	return names
}

// Plan resolves p into an offset or cursor plan.
func (pl *Planner) Plan(p Params) (*Plan, error) {
	if err := pl.validate(&p); err != nil {
		return nil, err
	}

	sf := pl.cfg.SortFields[p.SortBy]
	plan := &Plan{
		Page:   p.Page,
		Limit:  p.Limit,
		SortBy: p.SortBy,
		Field:  sf.Field,
		Desc:   p.Order == Desc,
	}

	if p.Cursor == "" {
		plan.Mode = ModeOffset
		plan.Skip = (p.Page - 1) * p.Limit

		return plan, nil
	}

	c, err := Decode(p.Cursor)
	if err != nil {
		return nil, err
	}

	if c.Field != p.SortBy {
		return nil, fmt.Errorf("%w: minted for sortBy=%s", models.ErrInvalidCursor, c.Field)
	}

	if !kindMatches(sf.Kind, c.Value) {
		return nil, fmt.Errorf("%w: value does not match sort field", models.ErrInvalidCursor)
	}

	plan.Mode = ModeCursor
	plan.Page = 0
	plan.Predicate = keyset(sf.Field, plan.Desc, c.Value, c.ID)

	return plan, nil
}

// keyset builds field op last OR (field == last AND id op lastID).
func keyset(field query.Field, desc bool, last any, lastID string) query.Expr {
	cmp, idCmp := query.Gt(field, last), query.Gt(query.FieldID, lastID)
	if desc {
		cmp, idCmp = query.Lt(field, last), query.Lt(query.FieldID, lastID)
	}

	return query.Or{cmp, query.And{query.Eq(field, last), idCmp}}
}

func kindMatches(kind ValueKind, v any) bool {
	switch v.(type) {
	case string:
		return kind == KindString
	default:
		return kind == KindTime
	}
}

// Scope returns scope with the plan's keyset predicate ANDed in.
func (p *Plan) Scope(scope query.And) query.And {
	if p.Predicate == nil {
		return scope
	}

	out := make(query.And, 0, len(scope)+1)
	out = append(out, scope...)

	return append(out, p.Predicate)
}

// FindOptions returns sort (field then id, same direction), skip and limit.
func (p *Plan) FindOptions() query.FindOptions {
	return query.FindOptions{
		Sort: []query.Sort{
			{Field: p.Field, Desc: p.Desc},
			{Field: query.FieldID, Desc: p.Desc},
		},
		Skip:  p.Skip,
		Limit: p.Limit,
	}
}
