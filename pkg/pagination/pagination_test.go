package pagination

import (
	"testing"
	"time"

	pkgerrors "github.com/angelmondragon/cuisync/pkg/errors"
)

type row struct {
	id string
	at time.Time
}

func rowKey(r row) Cursor {
	return Cursor{At: r.at, ID: r.id}
}

func newestFirst(n int) []row {
	base := time.Date(2026, 3, 1, 22, 0, 0, 0, time.UTC)
	rows := make([]row, n)
	for i := range rows {
		rows[i] = row{id: string(rune('a' + i)), at: base.Add(-time.Duration(i) * time.Minute)}
	}
	return rows
}

func TestNormalizeLimit(t *testing.T) {
	if got := NormalizeLimit(0); got != DefaultLimit {
		t.Fatalf("expected default, got %d", got)
	}
	if got := NormalizeLimit(1000); got != MaxLimit {
		t.Fatalf("expected max, got %d", got)
	}
	if got := NormalizeLimit(7); got != 7 {
		t.Fatalf("expected 7, got %d", got)
	}
}

func TestCursorRoundTrip(t *testing.T) {
	in := Cursor{At: time.Date(2026, 3, 1, 19, 30, 0, 123, time.UTC), ID: "pad-1"}
	out, err := ParseCursor(EncodeCursor(in))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !out.At.Equal(in.At) || out.ID != in.ID {
		t.Fatalf("unexpected cursor %+v", out)
	}
}

func TestParseCursorRejectsGarbage(t *testing.T) {
	if _, err := ParseCursor("!!!"); !pkgerrors.IsCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if c, err := ParseCursor(""); err != nil || c != nil {
		t.Fatalf("expected empty cursor, got %v %v", c, err)
	}
}

func TestSliceWalksAllPages(t *testing.T) {
	rows := newestFirst(5)

	var seen []string
	cursor := ""
	for pages := 0; pages < 10; pages++ {
		page, err := Slice(rows, Params{Limit: 2, Cursor: cursor}, rowKey)
		if err != nil {
			t.Fatalf("slice: %v", err)
		}
		for _, r := range page.Items {
			seen = append(seen, r.id)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	if got := len(seen); got != 5 {
		t.Fatalf("expected 5 rows across pages, got %v", seen)
	}
	if seen[0] != "a" || seen[4] != "e" {
		t.Fatalf("unexpected order %v", seen)
	}
}

func TestSliceFallsBackToTimestamp(t *testing.T) {
	rows := newestFirst(4)
	// the cursor row was restored out of history
	cursor := EncodeCursor(Cursor{At: rows[1].at, ID: "gone"})
	page, err := Slice(append(rows[:1:1], rows[2:]...), Params{Limit: 10, Cursor: cursor}, rowKey)
	if err != nil {
		t.Fatalf("slice: %v", err)
	}
	if len(page.Items) != 2 || page.Items[0].id != "c" {
		t.Fatalf("expected to resume at c, got %+v", page.Items)
	}
}
