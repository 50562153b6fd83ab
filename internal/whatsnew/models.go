package whatsnew

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Document is one "What's New" record as exchanged with the upstream API.
//
// Top-level string values live in Scalars, arrays of objects in Collections and
// everything else the server attaches (timestamps, version counters) in Extra so
// that it round-trips untouched.
type Document struct {
	ID          string
	Scalars     map[string]string
	Collections map[string][]Row
	Extra       map[string]json.RawMessage
}

// Row is a single entry of a named collection.
type Row struct {
	Fields map[string]string
	Lists  map[string][]string
	Extra  map[string]json.RawMessage
}

// Title returns the record title (empty when unset).
func (d Document) Title() string {
	return d.Scalars["title"]
}

// Rows returns the rows of the named collection (nil when absent).
func (d Document) Rows(collection string) []Row {
	return d.Collections[collection]
}

// Field returns a scalar field of the row.
func (r Row) Field(name string) string {
	return r.Fields[name]
}

// List returns a nested sequence of the row.
func (r Row) List(name string) []string {
	return r.Lists[name]
}

// NewRow builds a row from plain field values.
func NewRow(fields map[string]string) Row {
	r := Row{Fields: make(map[string]string, len(fields)), Lists: map[string][]string{}}
	for k, v := range fields {
		r.Fields[k] = v
	}
	return r
}

// Copy returns a row whose maps and lists are not shared with r.
func (r Row) Copy() Row {
	out := Row{
		Fields: make(map[string]string, len(r.Fields)),
		Lists:  make(map[string][]string, len(r.Lists)),
	}
	for k, v := range r.Fields {
		out.Fields[k] = v
	}
	for k, v := range r.Lists {
		out.Lists[k] = append([]string(nil), v...)
	}
	if len(r.Extra) > 0 {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = v
		}
	}
	return out
}

func (r Row) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Fields)+len(r.Lists)+len(r.Extra))
	for k, v := range r.Extra {
		out[k] = v
	}
	for k, v := range r.Fields {
		out[k] = v
	}
	for k, v := range r.Lists {
		if v == nil {
			v = []string{}
		}
		out[k] = v
	}
	return json.Marshal(out)
}

func (r *Row) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode row: %w", err)
	}
	r.Fields = map[string]string{}
	r.Lists = map[string][]string{}
	r.Extra = nil
	for k, v := range raw {
		switch kindOf(v) {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode row field %q: %w", k, err)
			}
			r.Fields[k] = s
		case '[':
			var list []string
			if err := json.Unmarshal(v, &list); err == nil {
				r.Lists[k] = list
				continue
			}
			r.setExtra(k, v)
		default:
			r.setExtra(k, v)
		}
	}
	return nil
}

func (r *Row) setExtra(k string, v json.RawMessage) {
	if r.Extra == nil {
		r.Extra = map[string]json.RawMessage{}
	}
	r.Extra[k] = v
}

func (d Document) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(d.Scalars)+len(d.Collections)+len(d.Extra)+1)
	for k, v := range d.Extra {
		out[k] = v
	}
	for k, v := range d.Scalars {
		out[k] = v
	}
	for k, rows := range d.Collections {
		if rows == nil {
			rows = []Row{}
		}
		out[k] = rows
	}
	if d.ID != "" {
		out["_id"] = d.ID
	}
	return json.Marshal(out)
}

func (d *Document) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}
	d.ID = ""
	d.Scalars = map[string]string{}
	d.Collections = map[string][]Row{}
	d.Extra = nil
	for k, v := range raw {
		if k == "_id" {
			if err := json.Unmarshal(v, &d.ID); err != nil {
				d.setExtra(k, v)
			}
			continue
		}
		switch kindOf(v) {
		case '"':
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return fmt.Errorf("decode field %q: %w", k, err)
			}
			d.Scalars[k] = s
		case '[':
			var rows []Row
			if err := json.Unmarshal(v, &rows); err == nil {
				d.Collections[k] = rows
				continue
			}
			d.setExtra(k, v)
		default:
			d.setExtra(k, v)
		}
	}
	return nil
}

func (d *Document) setExtra(k string, v json.RawMessage) {
	if d.Extra == nil {
		d.Extra = map[string]json.RawMessage{}
	}
	d.Extra[k] = v
}

// kindOf reports the first significant byte of a JSON value.
func kindOf(v json.RawMessage) byte {
	t := bytes.TrimLeft(v, " \t\r\n")
	if len(t) == 0 {
		return 0
	}
	return t[0]
}

// scalarFromRaw renders a JSON scalar as form text. Objects and arrays are not scalars.
func scalarFromRaw(v json.RawMessage) (string, bool) {
	switch kindOf(v) {
	case '"':
		var s string
		if err := json.Unmarshal(v, &s); err != nil {
			return "", false
		}
		return s, true
	case 'n':
		return "", true
	case '{', '[', 0:
		return "", false
	default:
		return string(bytes.TrimSpace(v)), true
	}
}

// listFromRaw renders a JSON array of scalars as form text.
func listFromRaw(v json.RawMessage) ([]string, bool) {
	if kindOf(v) != '[' {
		return nil, false
	}
	var items []json.RawMessage
	if err := json.Unmarshal(v, &items); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := scalarFromRaw(it)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}
