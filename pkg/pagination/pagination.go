package pagination

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
)

const (
	// DefaultLimit is the standard page size when a limit is not provided.
	DefaultLimit = 25
	// MaxLimit caps how many rows a single page can hold.
	MaxLimit = 100
)

// Params holds cursor pagination inputs from controllers.
type Params struct {
	Limit  int
	Cursor string
}

// Cursor identifies the last row of the previous page.
type Cursor struct {
	At time.Time
	ID string
}

// Page is one slice of an ordered collection.
type Page[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"nextCursor,omitempty"`
}

// NormalizeLimit enforces the configured default and maximum limits.
func NormalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// EncodeCursor builds a base64 cursor string from the provided values.
func EncodeCursor(cursor Cursor) string {
	payload := fmt.Sprintf("%s|%s", cursor.At.UTC().Format(time.RFC3339Nano), cursor.ID)
	return base64.RawURLEncoding.EncodeToString([]byte(payload))
}

// ParseCursor decodes the cursor string back into its components.
func ParseCursor(value string) (*Cursor, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, invalidCursor(err)
	}
	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 || parts[1] == "" {
		return nil, invalidCursor(fmt.Errorf("invalid cursor format"))
	}

	t, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, invalidCursor(err)
	}
	return &Cursor{At: t, ID: parts[1]}, nil
}

// Slice cuts one page out of items, which must already be sorted newest
// first. Paging resumes after the cursor's row, or after its timestamp when
// that row has left the collection.
func Slice[T any](items []T, params Params, key func(T) Cursor) (Page[T], error) {
	cursor, err := ParseCursor(params.Cursor)
	if err != nil {
		return Page[T]{}, err
	}

	start := 0
	if cursor != nil {
		start = len(items)
		found := false
		for i, item := range items {
			if key(item).ID == cursor.ID {
				start, found = i+1, true
				break
			}
		}
		if !found {
			for i, item := range items {
				if key(item).At.Before(cursor.At) {
					start = i
					break
				}
			}
		}
	}

	end := start + NormalizeLimit(params.Limit)
	if end > len(items) {
		end = len(items)
	}

	page := Page[T]{Items: append([]T{}, items[start:end]...)}
	if end < len(items) && end > start {
		page.NextCursor = EncodeCursor(key(items[end-1]))
	}
	return page, nil
}

func invalidCursor(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor").WithDetails(map[string]any{"field": "cursor"})
}
