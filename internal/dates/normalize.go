// Package dates converts between the storage date encoding used by the
// upstream API (DD-MM-YYYY) and the edit encoding used by native date
// inputs (YYYY-MM-DD). Conversion failures never surface as errors; they
// yield an empty string which callers treat as "row incomplete".
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"

	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

const (
	StorageLayout = "02-01-2006"
	EditLayout    = "2006-01-02"
)

var (
	storageRe = regexp.MustCompile(`^(\d{2})-(\d{2})-(\d{4})$`)
	editRe    = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// ToEditFormat permutes a DD-MM-YYYY value into YYYY-MM-DD. A value already
// in edit format passes through; anything else becomes "".
func ToEditFormat(stored string) string {
	if stored == "" {
		return ""
	}
	if m := storageRe.FindStringSubmatch(stored); m != nil {
		return m[3] + "-" + m[2] + "-" + m[1]
	}
	if editRe.MatchString(stored) {
		return stored
	}
	return ""
}

// ToStorageFormat coerces raw date input into DD-MM-YYYY. Storage-format
// input is returned unchanged; unparseable input becomes "".
func ToStorageFormat(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if storageRe.MatchString(raw) {
		return raw
	}
	t, ok := parse(raw)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%02d-%02d-%04d", t.Day(), int(t.Month()), t.Year())
}

// parse reads the calendar day the input names. The ISO layout is tried first
// so plain picker values never go through heuristics; the day is read in the
// value's own zone so no timezone shift can move it.
func parse(raw string) (time.Time, bool) {
	if t, err := time.Parse(EditLayout, raw); err == nil {
		return t, true
	}
	t, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// SanitizeDatedCollection normalises field on every row to storage format and
// drops rows whose date is then empty. The input slice is not modified.
func SanitizeDatedCollection(rows []whatsnew.Row, field string) []whatsnew.Row {
	out := make([]whatsnew.Row, 0, len(rows))
	for _, r := range rows {
		v := ToStorageFormat(r.Field(field))
		if v == "" {
			continue
		}
		if v != r.Field(field) {
			r = r.Copy()
			r.Fields[field] = v
		}
		out = append(out, r)
	}
	return out
}

// SanitizeDocument prepares a snapshot for transport: every dated collection
// of the canonical schema is passed through SanitizeDatedCollection.
func SanitizeDocument(doc whatsnew.Document) whatsnew.Document {
	return mapDated(doc, func(rows []whatsnew.Row, field string) []whatsnew.Row {
		return SanitizeDatedCollection(rows, field)
	})
}

// ToEditDocument converts every date field to edit format for an edit session.
func ToEditDocument(doc whatsnew.Document) whatsnew.Document {
	return mapDated(doc, func(rows []whatsnew.Row, field string) []whatsnew.Row {
		out := make([]whatsnew.Row, len(rows))
		for i, r := range rows {
			if v := ToEditFormat(r.Field(field)); v != r.Field(field) {
				r = r.Copy()
				r.Fields[field] = v
			}
			out[i] = r
		}
		return out
	})
}

func mapDated(doc whatsnew.Document, fn func([]whatsnew.Row, string) []whatsnew.Row) whatsnew.Document {
	out := doc
	out.Collections = make(map[string][]whatsnew.Row, len(doc.Collections))
	for k, v := range doc.Collections {
		out.Collections[k] = v
	}
	for name, field := range whatsnew.Canonical.DatedCollections() {
		rows, ok := out.Collections[name]
		if !ok {
			continue
		}
		out.Collections[name] = fn(rows, field)
	}
	return out
}
