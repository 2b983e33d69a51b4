package store

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/persistorai/auditlog/internal/query"
)

// logColumns maps query fields to audit_logs columns.
var logColumns = map[query.Field]string{
	query.FieldID:             "id",
	query.FieldOrganizationID: "organization_id",
	query.FieldAction:         "action",
	query.FieldEventType:      "event_type",
	query.FieldDescription:    "description",
	query.FieldActorID:        "actor_id",
	query.FieldActorName:      "actor_name",
	query.FieldActorEmail:     "actor_email",
	query.FieldTimestamp:      `"timestamp"`,
	query.FieldCreatedAt:      "created_at",
}

// sqlBuilder renders a query.Expr as a parameterized WHERE fragment.
type sqlBuilder struct {
	columns map[query.Field]string
	args    []any
}

func newSQLBuilder(columns map[query.Field]string) *sqlBuilder {
	return &sqlBuilder{columns: columns}
}

func (b *sqlBuilder) arg(v any) string {
	b.args = append(b.args, v)

	return "$" + strconv.Itoa(len(b.args))
}

// where renders e. Values always travel as arguments, never inline.
func (b *sqlBuilder) where(e query.Expr) (string, error) {
	switch n := e.(type) {
	case nil:
		return "TRUE", nil
	case query.And:
		return b.join(n, " AND ", "TRUE")
	case query.Or:
		return b.join(n, " OR ", "FALSE")
	case query.Cond:
		return b.cond(n)
	}

	return "", fmt.Errorf("unsupported expression %T", e)
}

func (b *sqlBuilder) join(children []query.Expr, sep, empty string) (string, error) {
	if len(children) == 0 {
		return empty, nil
	}

	parts := make([]string, 0, len(children))
	for _, c := range children {
		s, err := b.where(c)
		if err != nil {
			return "", err
		}
		parts = append(parts, s)
	}

	return "(" + strings.Join(parts, sep) + ")", nil
}

func (b *sqlBuilder) cond(c query.Cond) (string, error) {
	col, ok := b.columns[c.Field]
	if !ok {
		return "", fmt.Errorf("unknown field %q", c.Field)
	}

	switch c.Op {
	case query.OpEq:
		return col + " = " + b.arg(c.Value), nil
	case query.OpGt:
		return col + " > " + b.arg(c.Value), nil
	case query.OpLt:
		return col + " < " + b.arg(c.Value), nil
	case query.OpGte:
		return col + " >= " + b.arg(c.Value), nil
	case query.OpContainsFold:
		s, ok := c.Value.(string)
		if !ok {
			return "", fmt.Errorf("substring match on %q needs a string", c.Field)
		}

		return col + " ILIKE " + b.arg("%"+escapeLike(s)+"%") + ` ESCAPE '\'`, nil
	}

	return "", fmt.Errorf("unsupported operator %s", c.Op)
}

// orderBy renders an ORDER BY clause for sorts.
func (b *sqlBuilder) orderBy(sorts []query.Sort) (string, error) {
	if len(sorts) == 0 {
		return "", nil
	}

	parts := make([]string, 0, len(sorts))
	for _, s := range sorts {
		col, ok := b.columns[s.Field]
		if !ok {
			return "", fmt.Errorf("unknown sort field %q", s.Field)
		}

		dir := " ASC"
		if s.Desc {
			dir = " DESC"
		}
		parts = append(parts, col+dir)
	}

	return " ORDER BY " + strings.Join(parts, ", "), nil
}

// escapeLike escapes LIKE wildcards so user input matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

	return r.Replace(s)
}
