package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

type ValueKind int

const (
	KindString ValueKind = iota
	KindInt
	KindFloat
	KindBool
)

// Value is a scalar attribute value. Attribute maps hold exactly one of a
// string, an int64, a float64 or a bool per key, without resorting to
// interface{} typing.
type Value struct {
	kind  ValueKind
	str   string
	num   int64
	float float64
	bool  bool
}

func StringValue(v string) Value {
	return Value{kind: KindString, str: v}
}

func IntValue(v int64) Value {
	return Value{kind: KindInt, num: v}
}

func FloatValue(v float64) Value {
	return Value{kind: KindFloat, float: v}
}

func BoolValue(v bool) Value {
	return Value{kind: KindBool, bool: v}
}

func (v Value) Kind() ValueKind {
	return v.kind
}

func (v Value) AsString() string {
	return v.str
}

func (v Value) AsInt() int64 {
	return v.num
}

func (v Value) AsFloat() float64 {
	return v.float
}

func (v Value) AsBool() bool {
	return v.bool
}

// Emit returns the underlying scalar as an interface{}, for callers that
// serialize to schemaless formats.
func (v Value) Emit() interface{} {
	switch v.kind {
	case KindInt:
		return v.num
	case KindFloat:
		return v.float
	case KindBool:
		return v.bool
	default:
		return v.str
	}
}

func (v Value) String() string {
	switch v.kind {
	case KindInt:
		return strconv.FormatInt(v.num, 10)
	case KindFloat:
		return strconv.FormatFloat(v.float, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.bool)
	default:
		return v.str
	}
}

// MarshalJSON emits the bare scalar rather than a wrapper object, so exported
// attribute maps read as plain JSON objects.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Emit())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case string:
		*v = StringValue(typed)
	case bool:
		*v = BoolValue(typed)
	case json.Number:
		if i, err := typed.Int64(); err == nil {
			*v = IntValue(i)
			return nil
		}
		f, err := typed.Float64()
		if err != nil {
			return fmt.Errorf("error parsing attribute number %q: %w", typed.String(), err)
		}
		*v = FloatValue(f)
	default:
		return fmt.Errorf("unsupported attribute value type %T", raw)
	}
	return nil
}
