// Package formstate applies single localized edits to a whatsnew.Document.
//
// Every operation is a pure copy-on-write transform: the input document is
// never modified, and the result shares every map and slice the edit did not
// touch. Indices are checked, and a bad address fails with an error instead
// of corrupting state.
package formstate

import (
	"fmt"

	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

// SetScalarField replaces a top-level scalar. Unknown keys are allowed since
// defaults may omit optional fields.
func SetScalarField(doc whatsnew.Document, field, value string) whatsnew.Document {
	out := doc
	out.Scalars = make(map[string]string, len(doc.Scalars)+1)
	for k, v := range doc.Scalars {
		out.Scalars[k] = v
	}
	out.Scalars[field] = value
	return out
}

// SetRowField replaces doc[collection][index].fieldPath, where fieldPath is a
// plain field name or "nested[j]" addressing one pivot entry.
func SetRowField(doc whatsnew.Document, collection string, index int, fieldPath, value string) (whatsnew.Document, error) {
	addr, err := ParseRowFieldPath(collection, index, fieldPath)
	if err != nil {
		return doc, err
	}
	return Set(doc, addr, value)
}

// SetRichTextField writes editor content to a top-level field or, for paths
// of the form "collection[i].sub", into a row.
func SetRichTextField(doc whatsnew.Document, fieldPath, content string) (whatsnew.Document, error) {
	addr, err := ParsePath(fieldPath)
	if err != nil {
		return doc, err
	}
	return Set(doc, addr, content)
}

// Set writes value at addr.
func Set(doc whatsnew.Document, addr Address, value string) (whatsnew.Document, error) {
	switch addr.Kind {
	case KindTopLevel:
		return SetScalarField(doc, addr.Field, value), nil
	case KindRowField:
		return updateRow(doc, addr.Collection, addr.Row, func(r whatsnew.Row) (whatsnew.Row, error) {
			if _, isList := r.Lists[addr.Field]; isList {
				return r, fmt.Errorf("%w: %s is a nested sequence", ErrMalformedPath, addr)
			}
			out := r
			out.Fields = make(map[string]string, len(r.Fields)+1)
			for k, v := range r.Fields {
				out.Fields[k] = v
			}
			out.Fields[addr.Field] = value
			return out, nil
		})
	case KindNestedScalar:
		return updateList(doc, addr.Collection, addr.Row, addr.Field, func(list []string) ([]string, error) {
			if addr.Index < 0 || addr.Index >= len(list) {
				return nil, fmt.Errorf("%w: %s (len %d)", ErrOutOfRange, addr, len(list))
			}
			out := append([]string(nil), list...)
			out[addr.Index] = value
			return out, nil
		})
	}
	return doc, fmt.Errorf("%w: kind %d", ErrMalformedPath, addr.Kind)
}

// AppendRow appends a copy of template to the collection, creating the
// collection when it does not exist yet.
func AppendRow(doc whatsnew.Document, collection string, template whatsnew.Row) whatsnew.Document {
	rows := doc.Collections[collection]
	next := make([]whatsnew.Row, len(rows), len(rows)+1)
	copy(next, rows)
	next = append(next, template.Copy())
	return withCollection(doc, collection, next)
}

// RemoveRow drops the row at index; later rows shift left.
func RemoveRow(doc whatsnew.Document, collection string, index int) (whatsnew.Document, error) {
	rows, ok := doc.Collections[collection]
	if !ok {
		return doc, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if index < 0 || index >= len(rows) {
		return doc, fmt.Errorf("%w: %s[%d] (len %d)", ErrOutOfRange, collection, index, len(rows))
	}
	next := make([]whatsnew.Row, 0, len(rows)-1)
	next = append(next, rows[:index]...)
	next = append(next, rows[index+1:]...)
	return withCollection(doc, collection, next), nil
}

// AppendNestedScalar appends an empty entry to a row's nested sequence.
func AppendNestedScalar(doc whatsnew.Document, collection string, row int, nested string) (whatsnew.Document, error) {
	return updateList(doc, collection, row, nested, func(list []string) ([]string, error) {
		out := make([]string, len(list), len(list)+1)
		copy(out, list)
		return append(out, ""), nil
	})
}

// RemoveNestedScalar drops entry index of a row's nested sequence.
func RemoveNestedScalar(doc whatsnew.Document, collection string, row int, nested string, index int) (whatsnew.Document, error) {
	return updateList(doc, collection, row, nested, func(list []string) ([]string, error) {
		if index < 0 || index >= len(list) {
			return nil, fmt.Errorf("%w: %s[%d].%s[%d] (len %d)", ErrOutOfRange, collection, row, nested, index, len(list))
		}
		out := make([]string, 0, len(list)-1)
		out = append(out, list[:index]...)
		return append(out, list[index+1:]...), nil
	})
}

func withCollection(doc whatsnew.Document, collection string, rows []whatsnew.Row) whatsnew.Document {
	out := doc
	out.Collections = make(map[string][]whatsnew.Row, len(doc.Collections)+1)
	for k, v := range doc.Collections {
		out.Collections[k] = v
	}
	out.Collections[collection] = rows
	return out
}

func updateRow(doc whatsnew.Document, collection string, index int, fn func(whatsnew.Row) (whatsnew.Row, error)) (whatsnew.Document, error) {
	rows, ok := doc.Collections[collection]
	if !ok {
		return doc, fmt.Errorf("%w: %s", ErrUnknownCollection, collection)
	}
	if index < 0 || index >= len(rows) {
		return doc, fmt.Errorf("%w: %s[%d] (len %d)", ErrOutOfRange, collection, index, len(rows))
	}
	updated, err := fn(rows[index])
	if err != nil {
		return doc, err
	}
	next := make([]whatsnew.Row, len(rows))
	copy(next, rows)
	next[index] = updated
	return withCollection(doc, collection, next), nil
}

func updateList(doc whatsnew.Document, collection string, row int, nested string, fn func([]string) ([]string, error)) (whatsnew.Document, error) {
	return updateRow(doc, collection, row, func(r whatsnew.Row) (whatsnew.Row, error) {
		list, ok := r.Lists[nested]
		if !ok {
			return r, fmt.Errorf("%w: %s[%d] has no nested sequence %q", ErrMalformedPath, collection, row, nested)
		}
		updated, err := fn(list)
		if err != nil {
			return r, err
		}
		out := r
		out.Lists = make(map[string][]string, len(r.Lists))
		for k, v := range r.Lists {
			out.Lists[k] = v
		}
		out.Lists[nested] = updated
		return out, nil
	})
}
