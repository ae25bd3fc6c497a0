package sfapi

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidValueKind reports a decode against an undecodable declared kind.
var ErrInvalidValueKind = errors.New("invalid value kind")

// ValueKind identifies the variant held by a Value. The set is closed.
type ValueKind int

// Value variants.
const (
	KindNull ValueKind = iota
	KindString
	KindInt
	KindDouble
	KindBool
	KindDate
	KindDateTime
	KindID
	KindReference
	KindNested
)

// String returns the variant name.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindDouble:
		return "double"
	case KindBool:
		return "bool"
	case KindDate:
		return "date"
	case KindDateTime:
		return "datetime"
	case KindID:
		return "id"
	case KindReference:
		return "reference"
	case KindNested:
		return "nested"
	default:
		return "unknown"
	}
}

// Wire formats. The service emits RFC 3339 datetimes without the colon in
// the zone offset (+0000 rather than +00:00).
const (
	DateFormat     = "2006-01-02"
	DateTimeFormat = "2006-01-02T15:04:05.000-0700"
)

// Value is a single field's value: a tagged union over the closed variant
// set {Null, String, Int, Double, Bool, Date, DateTime, ID, Reference,
// Nested}. The zero Value is Null.
//
// A Reference variant carries an opaque alias such as "@{refAccount.id}"
// and only has meaning inside a composite batch, where the service resolves
// it against the batch's alias table.
type Value struct {
	kind ValueKind

	str     string
	num     float64
	integer int64
	boolean bool
	id      ID
	t       time.Time
	nested  []*Record
}

// Null returns the Null value.
func Null() Value {
	return Value{}
}

// String wraps a string.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Int wraps an integer.
func Int(i int64) Value {
	return Value{kind: KindInt, integer: i}
}

// Double wraps a float.
func Double(f float64) Value {
	return Value{kind: KindDouble, num: f}
}

// Bool wraps a boolean.
func Bool(b bool) Value {
	return Value{kind: KindBool, boolean: b}
}

// Date wraps a calendar date. The time-of-day portion is ignored.
func Date(t time.Time) Value {
	return Value{kind: KindDate, t: t}
}

// DateTime wraps a timestamp.
func DateTime(t time.Time) Value {
	return Value{kind: KindDateTime, t: t}
}

// Identifier wraps a record ID.
func Identifier(id ID) Value {
	return Value{kind: KindID, id: id}
}

// Reference wraps a composite alias such as "@{refAccount.id}".
func Reference(alias string) Value {
	return Value{kind: KindReference, str: alias}
}

// Nested wraps a sequence of child records.
func Nested(records []*Record) Value {
	return Value{kind: KindNested, nested: records}
}

// Kind returns the variant tag.
func (v Value) Kind() ValueKind {
	return v.kind
}

// IsNull reports whether the value is the Null variant.
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

// StringValue returns the wrapped string, or "" for other variants.
func (v Value) StringValue() string {
	if v.kind == KindString {
		return v.str
	}

	return ""
}

// IntValue returns the wrapped integer, or 0 for other variants.
func (v Value) IntValue() int64 {
	if v.kind == KindInt {
		return v.integer
	}

	return 0
}

// DoubleValue returns the wrapped float, or 0 for other variants.
func (v Value) DoubleValue() float64 {
	if v.kind == KindDouble {
		return v.num
	}

	return 0
}

// BoolValue returns the wrapped boolean, or false for other variants.
func (v Value) BoolValue() bool {
	if v.kind == KindBool {
		return v.boolean
	}

	return false
}

// TimeValue returns the wrapped date or timestamp, or the zero time.
func (v Value) TimeValue() time.Time {
	if v.kind == KindDate || v.kind == KindDateTime {
		return v.t
	}

	return time.Time{}
}

// IDValue returns the wrapped ID and whether the variant is an ID.
func (v Value) IDValue() (ID, bool) {
	return v.id, v.kind == KindID
}

// ReferenceValue returns the wrapped composite alias, or "".
func (v Value) ReferenceValue() string {
	if v.kind == KindReference {
		return v.str
	}

	return ""
}

// NestedValue returns the wrapped child records, or nil.
func (v Value) NestedValue() []*Record {
	if v.kind == KindNested {
		return v.nested
	}

	return nil
}

// AsString renders the value the way the wire format expects, for CSV bulk
// uploads and display. Null renders as "".
func (v Value) AsString() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString, KindReference:
		return v.str
	case KindInt:
		return strconv.FormatInt(v.integer, 10)
	case KindDouble:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.boolean)
	case KindDate:
		return v.t.Format(DateFormat)
	case KindDateTime:
		return v.t.Format(DateTimeFormat)
	case KindID:
		return v.id.String()
	case KindNested:
		return fmt.Sprintf("%d nested records", len(v.nested))
	default:
		return ""
	}
}

// toJSON returns the JSON-encodable representation of the value. Reference
// aliases serialize verbatim; the service substitutes them inside a
// composite batch.
func (v Value) toJSON() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindString, KindReference:
		return v.str
	case KindInt:
		return v.integer
	case KindDouble:
		return v.num
	case KindBool:
		return v.boolean
	case KindDate:
		return v.t.Format(DateFormat)
	case KindDateTime:
		return v.t.Format(DateTimeFormat)
	case KindID:
		return v.id.String()
	case KindNested:
		out := make([]any, 0, len(v.nested))
		for _, r := range v.nested {
			out = append(out, r.toJSON(true, true))
		}

		return map[string]any{"records": out}
	default:
		return nil
	}
}

// ValueFromJSON decodes a raw JSON value into the variant declared by kind.
// The declared kind comes from the object type's describe data.
func ValueFromJSON(raw any, kind ValueKind) (Value, error) {
	if raw == nil {
		return Null(), nil
	}

	switch kind {
	case KindString:
		s, ok := raw.(string)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		return String(s), nil
	case KindInt:
		f, ok := raw.(float64)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		return Int(int64(f)), nil
	case KindDouble:
		f, ok := raw.(float64)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		return Double(f), nil
	case KindBool:
		b, ok := raw.(bool)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		return Bool(b), nil
	case KindDate:
		s, ok := raw.(string)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		t, err := time.Parse(DateFormat, s)
		if err != nil {
			return Null(), fmt.Errorf("parsing date %q: %w", s, err)
		}

		return Date(t), nil
	case KindDateTime:
		s, ok := raw.(string)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		t, err := time.Parse(DateTimeFormat, s)
		if err != nil {
			return Null(), fmt.Errorf("parsing datetime %q: %w", s, err)
		}

		return DateTime(t), nil
	case KindID:
		s, ok := raw.(string)
		if !ok {
			return Null(), kindMismatch(kind, raw)
		}

		id, err := ParseID(s)
		if err != nil {
			return Null(), err
		}

		return Identifier(id), nil
	case KindNull, KindReference, KindNested:
		return Null(), fmt.Errorf("%w: cannot decode into %s", ErrInvalidValueKind, kind)
	default:
		return Null(), fmt.Errorf("%w: %d", ErrInvalidValueKind, kind)
	}
}

func kindMismatch(kind ValueKind, raw any) error {
	return fmt.Errorf("%w: JSON value %T is not a %s", ErrInvalidValueKind, raw, kind)
}
