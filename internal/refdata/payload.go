package refdata

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ValueKind is the closed set of value shapes a dataset field can take.
type ValueKind int

const (
	ValueString ValueKind = iota
	ValueNumber
	ValueList
)

// Value is one typed field value from a dataset row.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	List []string
}

func (v Value) any() any {
	switch v.Kind {
	case ValueNumber:
		return v.Num
	case ValueList:
		return v.List
	default:
		return v.Str
	}
}

// IsEmpty reports whether the value carries no text at all.
func (v Value) IsEmpty() bool {
	switch v.Kind {
	case ValueList:
		return len(v.List) == 0
	case ValueNumber:
		return false
	default:
		return strings.TrimSpace(v.Str) == ""
	}
}

// Text renders the value as a single string for display contexts.
func (v Value) Text() string {
	switch v.Kind {
	case ValueNumber:
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	case ValueList:
		return strings.Join(v.List, ", ")
	default:
		return v.Str
	}
}

// Record is one dataset row: a typed field→value mapping that preserves the
// document's field order. A nil/zero Record means the dataset had no row
// ("dataset absent"); a missing key means the row lacked that field
// ("field absent"); callers can tell the two apart.
type Record struct {
	fields []string
	values map[string]Value
}

// Len returns the number of fields in the record.
func (r Record) Len() int { return len(r.fields) }

// Fields returns the field codes in document order.
func (r Record) Fields() []string { return r.fields }

// Get returns the value for a field and whether the field was present.
func (r Record) Get(field string) (Value, bool) {
	v, ok := r.values[field]
	return v, ok
}

// String returns the field rendered as text, or "" when absent.
func (r Record) String(field string) string {
	v, ok := r.values[field]
	if !ok {
		return ""
	}
	return v.Text()
}

// Strings returns the field as a list: a list value as-is, any other
// non-empty value as a single-element list.
func (r Record) Strings(field string) []string {
	v, ok := r.values[field]
	if !ok || v.IsEmpty() {
		return nil
	}
	if v.Kind == ValueList {
		return v.List
	}
	return []string{v.Text()}
}

// Map converts the record to a plain map for serialization. Always non-nil.
func (r Record) Map() map[string]any {
	out := make(map[string]any, len(r.fields))
	for _, f := range r.fields {
		out[f] = r.values[f].any()
	}
	return out
}

func (r *Record) add(field, raw string) {
	raw = strings.TrimSpace(raw)
	if r.values == nil {
		r.values = make(map[string]Value)
	}
	prev, seen := r.values[field]
	if !seen {
		r.fields = append(r.fields, field)
		r.values[field] = classifyValue(raw)
		return
	}
	// Repeated field: collapse into a string list.
	if prev.Kind == ValueList {
		prev.List = append(prev.List, raw)
		r.values[field] = prev
		return
	}
	r.values[field] = Value{Kind: ValueList, List: []string{prev.Text(), raw}}
}

// classifyValue types a raw field string. Identifier-like strings with
// leading zeros (sku codes) stay strings even though they parse as numbers.
func classifyValue(raw string) Value {
	if raw != "" && !strings.HasPrefix(raw, "0") {
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return Value{Kind: ValueNumber, Num: n}
		}
	}
	return Value{Kind: ValueString, Str: raw}
}

// ParseTableResult decodes the nested XML table document carried in a query
// payload into typed records. Expected shape:
//
//	<TableResult>
//	  <Product>
//	    <FDI_0004>...</FDI_0004>
//	  </Product>
//	</TableResult>
func ParseTableResult(payload string) ([]Record, error) {
	dec := xml.NewDecoder(strings.NewReader(payload))

	var records []Record
	var cur *Record
	var field string
	var text strings.Builder
	depth := 0

	for {
		tok, err := dec.Token()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parse table payload: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			switch depth {
			case 1:
				if t.Name.Local != "TableResult" {
					return nil, fmt.Errorf("parse table payload: unexpected root element %q", t.Name.Local)
				}
			case 2:
				if t.Name.Local == "Product" {
					cur = &Record{}
				}
			case 3:
				if cur != nil {
					field = t.Name.Local
					text.Reset()
				}
			}
		case xml.CharData:
			if depth == 3 && cur != nil && field != "" {
				text.Write(t)
			}
		case xml.EndElement:
			switch depth {
			case 3:
				if cur != nil && field != "" {
					cur.add(field, text.String())
					field = ""
				}
			case 2:
				if cur != nil {
					records = append(records, *cur)
					cur = nil
				}
			}
			depth--
		}
	}
	return records, nil
}
