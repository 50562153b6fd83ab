package formstate

import (
	"fmt"

	"github.com/tradexpert/whatsnew-admin/internal/whatsnew"
)

// Op names one editor operation.
type Op string

const (
	OpSetScalar    Op = "set_scalar"
	OpSetRowField  Op = "set_row_field"
	OpSetRichText  Op = "set_rich_text"
	OpAppendRow    Op = "append_row"
	OpRemoveRow    Op = "remove_row"
	OpAppendNested Op = "append_nested"
	OpRemoveNested Op = "remove_nested"
)

// Edit is one user edit as sent by a screen.
//
//	{"op":"set_scalar","field":"title","value":"Weekly wrap"}
//	{"op":"set_row_field","collection":"nifty_tech_analysis","index":0,"field":"resistance_pivots[1]","value":"18500"}
//	{"op":"set_rich_text","path":"nifty_tech_analysis[0].description","value":"<p>..</p>"}
//	{"op":"append_row","collection":"corporate_action"}
//	{"op":"remove_nested","collection":"nifty_tech_analysis","index":0,"field":"support_pivots","nested_index":2}
type Edit struct {
	Op          Op     `json:"op"`
	Path        string `json:"path,omitempty"`
	Collection  string `json:"collection,omitempty"`
	Index       int    `json:"index,omitempty"`
	Field       string `json:"field,omitempty"`
	NestedIndex int    `json:"nested_index,omitempty"`
	Value       string `json:"value,omitempty"`
	// Format applies to set_rich_text: "html" (default) or "markdown".
	Format string `json:"format,omitempty"`
}

// Apply dispatches e against doc. Rows appended by append_row use the
// canonical template of the collection.
func Apply(doc whatsnew.Document, e Edit) (whatsnew.Document, error) {
	switch e.Op {
	case OpSetScalar:
		field := e.Field
		if field == "" {
			field = e.Path
		}
		if !plainRe.MatchString(field) {
			return doc, fmt.Errorf("%w: %q", ErrMalformedPath, field)
		}
		return SetScalarField(doc, field, e.Value), nil
	case OpSetRowField:
		return SetRowField(doc, e.Collection, e.Index, e.Field, e.Value)
	case OpSetRichText:
		path := e.Path
		if path == "" {
			path = e.Field
		}
		return SetRichTextField(doc, path, e.Value)
	case OpAppendRow:
		tmpl, ok := whatsnew.Template(e.Collection)
		if !ok {
			return doc, fmt.Errorf("%w: %s", ErrUnknownCollection, e.Collection)
		}
		return AppendRow(doc, e.Collection, tmpl), nil
	case OpRemoveRow:
		return RemoveRow(doc, e.Collection, e.Index)
	case OpAppendNested:
		return AppendNestedScalar(doc, e.Collection, e.Index, e.Field)
	case OpRemoveNested:
		return RemoveNestedScalar(doc, e.Collection, e.Index, e.Field, e.NestedIndex)
	}
	return doc, fmt.Errorf("%w: %q", ErrUnknownOp, e.Op)
}
