package formstate

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
)

var (
	ErrMalformedPath     = errors.New("malformed field path")
	ErrUnknownCollection = errors.New("unknown collection")
	ErrOutOfRange        = errors.New("index out of range")
	ErrUnknownOp         = errors.New("unknown edit operation")
)

// AddressKind tags which variant an Address holds.
type AddressKind int

const (
	KindTopLevel AddressKind = iota
	KindRowField
	KindNestedScalar
)

func (k AddressKind) String() string {
	switch k {
	case KindTopLevel:
		return "top_level"
	case KindRowField:
		return "row_field"
	case KindNestedScalar:
		return "nested_scalar"
	}
	return "unknown"
}

// Address locates one editable value inside a Document.
//
//	TopLevel      Field
//	RowField      Collection[Row].Field
//	NestedScalar  Collection[Row].Field[Index]
type Address struct {
	Kind       AddressKind
	Collection string
	Row        int
	Field      string
	Index      int
}

func TopLevel(field string) Address {
	return Address{Kind: KindTopLevel, Field: field}
}

func RowField(collection string, row int, field string) Address {
	return Address{Kind: KindRowField, Collection: collection, Row: row, Field: field}
}

func NestedScalar(collection string, row int, nested string, index int) Address {
	return Address{Kind: KindNestedScalar, Collection: collection, Row: row, Field: nested, Index: index}
}

func (a Address) String() string {
	switch a.Kind {
	case KindRowField:
		return fmt.Sprintf("%s[%d].%s", a.Collection, a.Row, a.Field)
	case KindNestedScalar:
		return fmt.Sprintf("%s[%d].%s[%d]", a.Collection, a.Row, a.Field, a.Index)
	}
	return a.Field
}

var (
	plainRe   = regexp.MustCompile(`^\w+$`)
	indexedRe = regexp.MustCompile(`^(\w+)\[(\d+)\]$`)
	rowRe     = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(\w+)$`)
	nestedRe  = regexp.MustCompile(`^(\w+)\[(\d+)\]\.(\w+)\[(\d+)\]$`)
)

// ParsePath decodes a full path: "field", "coll[i].field" or "coll[i].nested[j]".
func ParsePath(path string) (Address, error) {
	if m := nestedRe.FindStringSubmatch(path); m != nil {
		row, err1 := strconv.Atoi(m[2])
		idx, err2 := strconv.Atoi(m[4])
		if err1 != nil || err2 != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
		}
		return NestedScalar(m[1], row, m[3], idx), nil
	}
	if m := rowRe.FindStringSubmatch(path); m != nil {
		row, err := strconv.Atoi(m[2])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
		}
		return RowField(m[1], row, m[3]), nil
	}
	if plainRe.MatchString(path) {
		return TopLevel(path), nil
	}
	return Address{}, fmt.Errorf("%w: %q", ErrMalformedPath, path)
}

// ParseRowFieldPath decodes a field path relative to a row: "field" or "nested[j]".
func ParseRowFieldPath(collection string, row int, fieldPath string) (Address, error) {
	if m := indexedRe.FindStringSubmatch(fieldPath); m != nil {
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return Address{}, fmt.Errorf("%w: %q", ErrMalformedPath, fieldPath)
		}
		return NestedScalar(collection, row, m[1], idx), nil
	}
	if plainRe.MatchString(fieldPath) {
		return RowField(collection, row, fieldPath), nil
	}
	return Address{}, fmt.Errorf("%w: %q", ErrMalformedPath, fieldPath)
}
