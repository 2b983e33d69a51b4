package query

import (
	"strings"

	"github.com/persistorai/auditlog/internal/models"
)

// MatchKind is how an allow-listed filter compares its value.
type MatchKind int

// Filter comparison kinds.
const (
	MatchExact MatchKind = iota
	MatchSubstring
)

// FilterSpec binds a request parameter to a field and comparison.
type FilterSpec struct {
	Param string
	Field Field
	Kind  MatchKind
}

// AllowedFilters is the fixed filter allow-list, in clause order. Request
// parameters not listed here never reach a store.
var AllowedFilters = []FilterSpec{
	{Param: "eventType", Field: FieldEventType, Kind: MatchExact},
	{Param: "userId", Field: FieldActorID, Kind: MatchExact},
	{Param: "action", Field: FieldAction, Kind: MatchSubstring},
}

// SearchFields are ORed together for free-text search.
var SearchFields = []Field{FieldAction, FieldEventType, FieldDescription, FieldActorName, FieldActorEmail}

// maxSearchLen bounds the free-text term.
const maxSearchLen = 500

// TenantClause returns the mandatory tenant predicate.
func TenantClause(tenantID string) Cond {
	return Eq(FieldOrganizationID, tenantID)
}

// BuildScope composes tenant AND filters AND (search OR ...). The tenant clause
// is always first and cannot be replaced by any parameter.
func BuildScope(tenantID string, filters map[string]string, search string) (And, error) {
	if strings.TrimSpace(tenantID) == "" {
		return nil, models.ErrMissingTenant
	}

	scope := And{TenantClause(tenantID)}

	for _, spec := range AllowedFilters {
		v := strings.TrimSpace(filters[spec.Param])
		if v == "" {
			continue
		}

		switch spec.Kind {
		case MatchExact:
			if spec.Field == FieldEventType {
				v = strings.ToUpper(v)
			}
			scope = append(scope, Eq(spec.Field, v))
		case MatchSubstring:
			scope = append(scope, ContainsFold(spec.Field, v))
		}
	}

	search = strings.TrimSpace(search)
	if search != "" {
		if len(search) > maxSearchLen {
			return nil, models.ErrFieldTooLong("search", maxSearchLen)
		}

		or := make(Or, 0, len(SearchFields))
		for _, f := range SearchFields {
			or = append(or, ContainsFold(f, search))
		}
		scope = append(scope, or)
	}

	return scope, nil
}

// FromSavedQuery builds the scope for a stored search preset.
func FromSavedQuery(tenantID string, q models.SearchQuery) (And, error) {
	return BuildScope(tenantID, q.Filters(), q.Search)
}
