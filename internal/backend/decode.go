package backend

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Shape tells which response form a payload was recognised as.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeArray
	ShapeData
	ShapeContent
	ShapeKeyed
	ShapeNestedContent
	ShapeScalar
	ShapeCountField
)

func (s Shape) String() string {
	switch s {
	case ShapeArray:
		return "array"
	case ShapeData:
		return "data"
	case ShapeContent:
		return "content"
	case ShapeKeyed:
		return "keyed"
	case ShapeNestedContent:
		return "data.content"
	case ShapeScalar:
		return "scalar"
	case ShapeCountField:
		return "count"
	default:
		return "unknown"
	}
}

// DecodeList extracts a list from raw, trying in order: bare array,
// {data: [...]}, {content: [...]}, {<key>: [...]} for each key, and
// {data: {content: [...]}}. Entries that fail to decode or are rejected by
// valid are dropped; the second result is the number of dropped entries.
func DecodeList[T any](raw []byte, valid func(T) bool, keys ...string) ([]T, int, Shape) {
	items, shape := listItems(raw, keys)

	out := make([]T, 0, len(items))
	dropped := 0
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			dropped++
			continue
		}
		if valid != nil && !valid(v) {
			dropped++
			continue
		}
		out = append(out, v)
	}

	return out, dropped, shape
}

// DecodeObject extracts a single object from a bare body, {data: {...}} or
// {<key>: {...}}.
func DecodeObject[T any](raw []byte, keys ...string) (T, bool) {
	var zero T

	obj, ok := objectFields(raw)
	if !ok {
		return zero, false
	}

	for _, k := range append([]string{"data"}, keys...) {
		inner, ok := obj[k]
		if !ok || !isObject(inner) {
			continue
		}
		var v T
		if err := json.Unmarshal(inner, &v); err == nil {
			return v, true
		}
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, false
	}

	return v, true
}

// DecodeCount normalises a collection or count response into a number:
// a scalar, any list shape DecodeList accepts, or an object carrying
// count, total or totalElements.
func DecodeCount(raw []byte, keys ...string) (int, Shape) {
	raw = bytes.TrimSpace(raw)

	var n flexInt
	if err := json.Unmarshal(raw, &n); err == nil && len(raw) > 0 && raw[0] != '{' && raw[0] != '[' {
		return int(n), ShapeScalar
	}

	if items, shape := listItems(raw, keys); shape != ShapeUnknown {
		return len(items), shape
	}

	obj, ok := objectFields(raw)
	if !ok {
		return 0, ShapeUnknown
	}

	for _, k := range []string{"count", "total", "totalElements", "data"} {
		v, ok := obj[k]
		if !ok {
			continue
		}
		var n flexInt
		if err := json.Unmarshal(v, &n); err == nil {
			return int(n), ShapeCountField
		}
	}

	return 0, ShapeUnknown
}

func listItems(raw []byte, keys []string) ([]json.RawMessage, Shape) {
	raw = bytes.TrimSpace(raw)

	var arr []json.RawMessage
	if len(raw) > 0 && raw[0] == '[' {
		if err := json.Unmarshal(raw, &arr); err == nil {
			return arr, ShapeArray
		}
		return nil, ShapeUnknown
	}

	obj, ok := objectFields(raw)
	if !ok {
		return nil, ShapeUnknown
	}

	if items, ok := arrayField(obj, "data"); ok {
		return items, ShapeData
	}

	if items, ok := arrayField(obj, "content"); ok {
		return items, ShapeContent
	}

	for _, k := range keys {
		if items, ok := arrayField(obj, k); ok {
			return items, ShapeKeyed
		}
	}

	if data, ok := obj["data"]; ok {
		if inner, ok := objectFields(data); ok {
			if items, ok := arrayField(inner, "content"); ok {
				return items, ShapeNestedContent
			}
		}
	}

	return nil, ShapeUnknown
}

func objectFields(raw []byte) (map[string]json.RawMessage, bool) {
	if !isObject(raw) {
		return nil, false
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}

	return obj, true
}

func arrayField(obj map[string]json.RawMessage, key string) ([]json.RawMessage, bool) {
	v, ok := obj[key]
	if !ok {
		return nil, false
	}

	v = bytes.TrimSpace(v)
	if len(v) == 0 || v[0] != '[' {
		return nil, false
	}

	var arr []json.RawMessage
	if err := json.Unmarshal(v, &arr); err != nil {
		return nil, false
	}

	return arr, true
}

func isObject(raw []byte) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// flexInt accepts a JSON number, a numeric string or null.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*n = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*n = flexInt(v)
	return nil
}

// flexFloat accepts a JSON number, a numeric string or null.
type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return err
	}

	*f = flexFloat(v)
	return nil
}

// flexBool accepts true/false, their string forms and 0/1.
type flexBool bool

func (f *flexBool) UnmarshalJSON(b []byte) error {
	s := strings.ToLower(strings.Trim(strings.TrimSpace(string(b)), `"`))
	switch s {
	case "true", "1", "yes":
		*f = true
	default:
		*f = false
	}
	return nil
}
