package whatsnew

import "encoding/json"

// CollectionSpec describes the fixed row shape of one named collection.
type CollectionSpec struct {
	Name      string   `json:"name"`
	Fields    []string `json:"fields"`
	Lists     []string `json:"lists,omitempty"`
	DateField string   `json:"date_field,omitempty"`
}

// Schema is the set of top-level scalars and row collections a Document carries.
type Schema struct {
	Scalars     []string         `json:"scalars"`
	Collections []CollectionSpec `json:"collections"`
}

var techAnalysis = []string{"resistance_pivots", "support_pivots"}

var trending = []string{"stock_name", "price", "change_percent"}

// Canonical is the single schema used by both the add and the manage flows.
var Canonical = Schema{
	Scalars: []string{
		"title",
		"description",
		"market_bulletin",
		"bullish_outlook",
		"bearish_outlook",
		"todays_learning",
		"risk_management",
		"trading_strategy",
	},
	Collections: []CollectionSpec{
		{Name: "fiidii_activity", Fields: []string{"currentDate", "fiiNet", "diiNet"}, DateField: "currentDate"},
		{Name: "nifty_tech_analysis", Fields: []string{"description"}, Lists: techAnalysis},
		{Name: "bank_nifty_tech_analysis", Fields: []string{"description"}, Lists: techAnalysis},
		{Name: "corporate_action", Fields: []string{"company_name", "description", "tag", "price_range"}},
		{Name: "earning_report", Fields: []string{"company_name", "description", "price_range"}},
		{Name: "upcoming_ipos", Fields: []string{"dates", "company_name", "price_range", "lot_size", "subscription"}, DateField: "dates"},
		{Name: "news", Fields: []string{"title", "description", "pubDate"}, DateField: "pubDate"},
		{Name: "top_gainers", Fields: trending},
		{Name: "top_losers", Fields: trending},
		{Name: "volume_gainers", Fields: trending},
		{Name: "sectoral_performance", Fields: []string{"sector", "change_percent"}},
		{Name: "market_outlook", Fields: []string{"title", "description"}},
	},
}

// Collection looks up a collection by name.
func (s Schema) Collection(name string) (CollectionSpec, bool) {
	for _, c := range s.Collections {
		if c.Name == name {
			return c, true
		}
	}
	return CollectionSpec{}, false
}

// DatedCollections maps collection name to its date field.
func (s Schema) DatedCollections() map[string]string {
	out := map[string]string{}
	for _, c := range s.Collections {
		if c.DateField != "" {
			out[c.Name] = c.DateField
		}
	}
	return out
}

// Template returns a fresh empty row of the collection's shape.
// Nested lists start with one empty entry so the UI renders one input.
func (c CollectionSpec) Template() Row {
	r := Row{
		Fields: make(map[string]string, len(c.Fields)),
		Lists:  make(map[string][]string, len(c.Lists)),
	}
	for _, f := range c.Fields {
		r.Fields[f] = ""
	}
	for _, l := range c.Lists {
		r.Lists[l] = []string{""}
	}
	return r
}

// Template returns the empty row for a collection of the canonical schema.
func Template(collection string) (Row, bool) {
	c, ok := Canonical.Collection(collection)
	if !ok {
		return Row{}, false
	}
	return c.Template(), true
}

// NewDocument returns the empty document the add flow starts from.
func (s Schema) NewDocument() Document {
	d := Document{
		Scalars:     make(map[string]string, len(s.Scalars)),
		Collections: make(map[string][]Row, len(s.Collections)),
	}
	for _, f := range s.Scalars {
		d.Scalars[f] = ""
	}
	for _, c := range s.Collections {
		d.Collections[c.Name] = []Row{c.Template()}
	}
	return d
}

// NewDocument returns an empty canonical document.
func NewDocument() Document {
	return Canonical.NewDocument()
}

// FillDefaults returns a copy of doc that satisfies the full schema: every
// scalar is present, every collection exists (one template row when missing)
// and every row carries its template's fields. Unknown keys are kept.
func (s Schema) FillDefaults(doc Document) Document {
	out := Document{
		ID:          doc.ID,
		Scalars:     make(map[string]string, len(doc.Scalars)+len(s.Scalars)),
		Collections: make(map[string][]Row, len(doc.Collections)+len(s.Collections)),
	}
	if len(doc.Extra) > 0 {
		out.Extra = make(map[string]json.RawMessage, len(doc.Extra))
		for k, v := range doc.Extra {
			out.Extra[k] = v
		}
	}
	for k, v := range doc.Scalars {
		out.Scalars[k] = v
	}
	for k, rows := range doc.Collections {
		out.Collections[k] = rows
	}

	for _, f := range s.Scalars {
		if _, ok := out.Scalars[f]; ok {
			continue
		}
		if raw, ok := out.Extra[f]; ok {
			if v, ok := scalarFromRaw(raw); ok {
				out.Scalars[f] = v
				delete(out.Extra, f)
				continue
			}
		}
		out.Scalars[f] = ""
	}

	for _, c := range s.Collections {
		rows, ok := out.Collections[c.Name]
		if !ok {
			if raw, ok := out.Extra[c.Name]; ok && kindOf(raw) != 'n' {
				continue
			}
			delete(out.Extra, c.Name)
			out.Collections[c.Name] = []Row{c.Template()}
			continue
		}
		filled := make([]Row, len(rows))
		for i, r := range rows {
			filled[i] = c.fillRow(r)
		}
		out.Collections[c.Name] = filled
	}
	return out
}

// FillDefaults applies the canonical schema.
func FillDefaults(doc Document) Document {
	return Canonical.FillDefaults(doc)
}

func (c CollectionSpec) fillRow(r Row) Row {
	out := r.Copy()
	for _, f := range c.Fields {
		if _, ok := out.Fields[f]; ok {
			continue
		}
		if raw, ok := out.Extra[f]; ok {
			if v, ok := scalarFromRaw(raw); ok {
				out.Fields[f] = v
				delete(out.Extra, f)
				continue
			}
		}
		out.Fields[f] = ""
	}
	for _, l := range c.Lists {
		if _, ok := out.Lists[l]; ok {
			continue
		}
		if raw, ok := out.Extra[l]; ok && kindOf(raw) != 'n' {
			if list, ok := listFromRaw(raw); ok {
				out.Lists[l] = list
				delete(out.Extra, l)
			}
			continue
		}
		delete(out.Extra, l)
		out.Lists[l] = []string{""}
	}
	return out
}
