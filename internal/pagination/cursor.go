// Package pagination plans and executes offset and keyset (cursor) paginated
// queries over any Source.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/persistorai/auditlog/internal/models"
)

// Cursor is a resume point: the sort field it was minted for, the last row's
// value of that field, and the last row's id.
type Cursor struct {
	Field string
	Value any
	ID    string
}

// Value kinds carried in the encoded payload.
const (
	kindTime   = "t"
	kindString = "s"
)

type cursorPayload struct {
	Field string `json:"f"`
	Kind  string `json:"k"`
	Value string `json:"v"`
	ID    string `json:"id"`
}

// Encode returns the URL-safe opaque form of c. Value must be a string or a
// time.Time.
func Encode(c Cursor) (string, error) {
	p := cursorPayload{Field: c.Field, ID: c.ID}

	switch v := c.Value.(type) {
	case time.Time:
		p.Kind = kindTime
		p.Value = v.UTC().Format(time.RFC3339Nano)
	case string:
		p.Kind = kindString
		p.Value = v
	default:
		return "", fmt.Errorf("encoding cursor: unsupported value type %T", c.Value)
	}

	b, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("encoding cursor: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Decode is the inverse of Encode. Any malformed token yields ErrInvalidCursor.
func Decode(token string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: not base64url", models.ErrInvalidCursor)
	}

	var p cursorPayload
	if err := json.Unmarshal(b, &p); err != nil {
		return Cursor{}, fmt.Errorf("%w: malformed payload", models.ErrInvalidCursor)
	}

	if p.Field == "" || p.ID == "" {
		return Cursor{}, fmt.Errorf("%w: missing field or id", models.ErrInvalidCursor)
	}

	c := Cursor{Field: p.Field, ID: p.ID}

	switch p.Kind {
	case kindTime:
		t, err := time.Parse(time.RFC3339Nano, p.Value)
		if err != nil {
			return Cursor{}, fmt.Errorf("%w: bad time value", models.ErrInvalidCursor)
		}
		c.Value = t.UTC()
	case kindString:
		c.Value = p.Value
	default:
		return Cursor{}, fmt.Errorf("%w: unknown value kind", models.ErrInvalidCursor)
	}

	return c, nil
}
