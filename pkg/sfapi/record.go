package sfapi

import (
	"strings"
	"time"
)

// RecordAccessor is the capability a value needs to flow through the
// collections, composite, and bulk engines. Record implements it for the
// generic case; applications with strongly-typed structs can implement it
// directly and skip the generic representation.
type RecordAccessor interface {
	// ObjectType returns the API name of the object type.
	ObjectType() string
	// Field returns the named field's value; Null if absent. Lookup is
	// case-insensitive.
	Field(name string) Value
	// SetField sets the named field's value.
	SetField(name string, value Value)
	// FieldNames returns the field names in insertion order.
	FieldNames() []string
	// RecordID returns the record's identifier and whether one is set. A
	// composite Reference stands in for an ID inside a batch and is
	// reported through Field("Id"), not here.
	RecordID() (ID, bool)
}

// Record is the generic representation of one object instance: an object
// type name, an insertion-ordered field map with case-insensitive unique
// names, and an optional identifier carried in the "Id" field.
//
// A Record is owned by the caller. It must not be mutated while an
// operation referencing it is outstanding: the batching engines may
// serialize it lazily.
type Record struct {
	objectType string
	names      []string       // insertion order, original casing
	index      map[string]int // lowercased name -> position in names
	values     []Value
}

// NewRecord creates an empty Record of the given object type.
func NewRecord(objectType string) *Record {
	return &Record{
		objectType: objectType,
		index:      make(map[string]int),
	}
}

// ObjectType implements RecordAccessor.
func (r *Record) ObjectType() string {
	return r.objectType
}

// Field implements RecordAccessor. Absent fields read as Null.
func (r *Record) Field(name string) Value {
	pos, ok := r.index[strings.ToLower(name)]
	if !ok {
		return Null()
	}

	return r.values[pos]
}

// Has reports whether the named field is present, even if Null.
func (r *Record) Has(name string) bool {
	_, ok := r.index[strings.ToLower(name)]

	return ok
}

// SetField implements RecordAccessor. Setting an existing field (matched
// case-insensitively) replaces its value in place; new fields append.
func (r *Record) SetField(name string, value Value) {
	key := strings.ToLower(name)
	if pos, ok := r.index[key]; ok {
		r.values[pos] = value

		return
	}

	r.index[key] = len(r.names)
	r.names = append(r.names, name)
	r.values = append(r.values, value)
}

// FieldNames implements RecordAccessor.
func (r *Record) FieldNames() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)

	return out
}

// RecordID implements RecordAccessor.
func (r *Record) RecordID() (ID, bool) {
	return r.Field("Id").IDValue()
}

// SetID assigns the record's identifier.
func (r *Record) SetID(id ID) {
	r.SetField("Id", Identifier(id))
}

// Builder-style setters.

// WithString sets a string field and returns the record.
func (r *Record) WithString(name, value string) *Record {
	r.SetField(name, String(value))

	return r
}

// WithInt sets an integer field and returns the record.
func (r *Record) WithInt(name string, value int64) *Record {
	r.SetField(name, Int(value))

	return r
}

// WithDouble sets a float field and returns the record.
func (r *Record) WithDouble(name string, value float64) *Record {
	r.SetField(name, Double(value))

	return r
}

// WithBool sets a boolean field and returns the record.
func (r *Record) WithBool(name string, value bool) *Record {
	r.SetField(name, Bool(value))

	return r
}

// WithDate sets a date field and returns the record.
func (r *Record) WithDate(name string, value time.Time) *Record {
	r.SetField(name, Date(value))

	return r
}

// WithDateTime sets a timestamp field and returns the record.
func (r *Record) WithDateTime(name string, value time.Time) *Record {
	r.SetField(name, DateTime(value))

	return r
}

// WithID sets an ID field and returns the record.
func (r *Record) WithID(name string, value ID) *Record {
	r.SetField(name, Identifier(value))

	return r
}

// WithReference sets a composite alias field and returns the record.
// The alias only resolves inside a composite batch.
func (r *Record) WithReference(name, alias string) *Record {
	r.SetField(name, Reference(alias))

	return r
}

// WithNull sets an explicit Null field (serialized as JSON null, which the
// service treats as "clear this field" on update) and returns the record.
func (r *Record) WithNull(name string) *Record {
	r.SetField(name, Null())

	return r
}

// toJSON builds the JSON-encodable map for the record, in field insertion
// order. includeType adds the attributes envelope the Collections endpoints
// require; includeID controls whether the Id field is carried.
func (r *Record) toJSON(includeType, includeID bool) map[string]any {
	out := make(map[string]any, len(r.names)+1)

	if includeType {
		out["attributes"] = map[string]any{"type": r.objectType}
	}

	for i, name := range r.names {
		if !includeID && strings.EqualFold(name, "id") {
			continue
		}

		out[name] = r.values[i].toJSON()
	}

	return out
}

// MarshalFields is the serialization used by the transport clients.
// Exported through an internal-friendly name so RecordAccessor
// implementations other than Record share one code path.
func MarshalFields(rec RecordAccessor, includeType, includeID bool) map[string]any {
	if r, ok := rec.(*Record); ok {
		return r.toJSON(includeType, includeID)
	}

	out := make(map[string]any)

	if includeType {
		out["attributes"] = map[string]any{"type": rec.ObjectType()}
	}

	for _, name := range rec.FieldNames() {
		if !includeID && strings.EqualFold(name, "id") {
			continue
		}

		out[name] = rec.Field(name).toJSON()
	}

	return out
}

// RecordFromJSON decodes a response payload object into a Record, using the
// object type's describe data to pick value kinds. Fields without describe
// data decode as strings when the payload carries a string, preserving the
// raw value rather than failing. The "attributes" envelope is skipped.
func RecordFromJSON(objectType string, payload map[string]any, describe *ObjectDescribe) (*Record, error) {
	rec := NewRecord(objectType)

	for name, raw := range payload {
		if name == "attributes" {
			continue
		}

		kind := KindString

		if describe != nil {
			if fd := describe.Field(name); fd != nil {
				kind = fd.Kind()
			}
		}

		value, err := decodeLenient(raw, kind)
		if err != nil {
			return nil, err
		}

		rec.SetField(name, value)
	}

	return rec, nil
}

// decodeLenient falls back to the JSON-native kind when the declared kind
// does not match, so undescribed fields still round-trip.
func decodeLenient(raw any, kind ValueKind) (Value, error) {
	value, err := ValueFromJSON(raw, kind)
	if err == nil {
		return value, nil
	}

	switch v := raw.(type) {
	case string:
		return String(v), nil
	case float64:
		return Double(v), nil
	case bool:
		return Bool(v), nil
	default:
		return Null(), err
	}
}
