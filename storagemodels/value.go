/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package storagemodels

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/go-openapi/strfmt"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"

	"github.com/suparena/eserp/errors"
)

// ValueKind tags the scalar held by a Value.
type ValueKind string

const (
	KindNull    ValueKind = "null"
	KindText    ValueKind = "text"
	KindNumber  ValueKind = "number"
	KindDate    ValueKind = "date"
	KindBoolean ValueKind = "boolean"
)

// Value is one scalar in an entity's attribute bag.
// The zero Value is null.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
	Date   time.Time
	Bool   bool
}

// Text returns a text value.
func Text(s string) Value { return Value{Kind: KindText, Text: s} }

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Number: f} }

// Date returns a date value truncated to millisecond precision, which is what
// both BSON and RFC3339Nano round-trips preserve.
func Date(t time.Time) Value { return Value{Kind: KindDate, Date: t.UTC().Truncate(time.Millisecond)} }

// Bool returns a boolean value.
func Bool(b bool) Value { return Value{Kind: KindBoolean, Bool: b} }

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// IsNull reports whether v holds no scalar.
func (v Value) IsNull() bool {
	return v.Kind == "" || v.Kind == KindNull
}

// Interface returns the Go scalar held by v, or nil.
func (v Value) Interface() any {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return v.Number
	case KindDate:
		return v.Date
	case KindBoolean:
		return v.Bool
	default:
		return nil
	}
}

// String renders v for logs and error messages.
func (v Value) String() string {
	switch v.Kind {
	case KindText:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindDate:
		return v.Date.Format(time.RFC3339Nano)
	case KindBoolean:
		return strconv.FormatBool(v.Bool)
	default:
		return "null"
	}
}

// Equal reports whether two values hold the same kind and scalar.
func (v Value) Equal(o Value) bool {
	if v.IsNull() || o.IsNull() {
		return v.IsNull() && o.IsNull()
	}
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case KindText:
		return v.Text == o.Text
	case KindNumber:
		return v.Number == o.Number
	case KindDate:
		return v.Date.Equal(o.Date)
	default:
		return v.Bool == o.Bool
	}
}

// FromAny converts a Go scalar into a Value.
func FromAny(in any) (Value, error) {
	switch tv := in.(type) {
	case nil:
		return Null(), nil
	case Value:
		return tv, nil
	case string:
		return Text(tv), nil
	case bool:
		return Bool(tv), nil
	case int:
		return Number(float64(tv)), nil
	case int32:
		return Number(float64(tv)), nil
	case int64:
		return Number(float64(tv)), nil
	case float32:
		return finiteNumber(float64(tv))
	case float64:
		return finiteNumber(tv)
	case json.Number:
		f, err := tv.Float64()
		if err != nil {
			return Value{}, errors.NewValidationError("value", fmt.Sprintf("invalid number %q", tv.String()))
		}
		return finiteNumber(f)
	case time.Time:
		return Date(tv), nil
	case strfmt.DateTime:
		return Date(time.Time(tv)), nil
	default:
		return Value{}, errors.NewValidationError("value", fmt.Sprintf("unsupported attribute type %T", in))
	}
}

// MustFromAny is FromAny for literals in seeds and tests.
func MustFromAny(in any) Value {
	v, err := FromAny(in)
	if err != nil {
		panic(err)
	}
	return v
}

func finiteNumber(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, errors.NewValidationError("value", "number must be finite")
	}
	return Number(f), nil
}

// MarshalJSON renders the bare scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.Kind {
	case KindDate:
		return json.Marshal(v.Date.Format(time.RFC3339Nano))
	default:
		return json.Marshal(v.Interface())
	}
}

// UnmarshalJSON accepts a bare scalar. JSON strings always decode to text.
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// MarshalBSONValue stores v as the matching native BSON type.
func (v Value) MarshalBSONValue() (bsontype.Type, []byte, error) {
	switch v.Kind {
	case KindText:
		return bson.MarshalValue(v.Text)
	case KindNumber:
		return bson.MarshalValue(v.Number)
	case KindDate:
		return bson.MarshalValue(v.Date)
	case KindBoolean:
		return bson.MarshalValue(v.Bool)
	default:
		return bsontype.Null, nil, nil
	}
}

// UnmarshalBSONValue decodes native BSON scalars; integers become numbers.
func (v *Value) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	rv := bson.RawValue{Type: t, Value: data}
	switch t {
	case bsontype.Null, bsontype.Undefined:
		*v = Null()
	case bsontype.String:
		*v = Text(rv.StringValue())
	case bsontype.Double:
		*v = Number(rv.Double())
	case bsontype.Int32:
		*v = Number(float64(rv.Int32()))
	case bsontype.Int64:
		*v = Number(float64(rv.Int64()))
	case bsontype.Boolean:
		*v = Bool(rv.Boolean())
	case bsontype.DateTime:
		*v = Date(time.UnixMilli(rv.DateTime()))
	default:
		return fmt.Errorf("unsupported BSON type %s for attribute value", t)
	}
	return nil
}

func parseDateText(s string) (time.Time, error) {
	dt, err := strfmt.ParseDateTime(s)
	if err != nil {
		return time.Time{}, err
	}
	return time.Time(dt), nil
}
