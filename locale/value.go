// Package locale reads, flattens and writes the JSON dictionaries that hold
// a site's translations.
//
// Dictionaries may be nested trees or already-flat maps. Either way they are
// handled as a FlatDict: an ordered mapping from key path ("nav.items[2]")
// to leaf value. Key order is always preserved from the file, and writes go
// through a temporary file and a rename so readers never observe a torn
// file.
package locale

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies the variant held by a Value.
type Kind int

const (
	KindNull Kind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "boolean"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Value is a JSON value that keeps object key order and number literals.
type Value struct {
	Kind   Kind
	Str    string
	Num    json.Number
	Bool   bool
	Fields []Field
	Items  []Value
}

// Field is one key/value member of an object, in file order.
type Field struct {
	Key   string
	Value Value
}

// String returns a string leaf.
func String(s string) Value { return Value{Kind: KindString, Str: s} }

// Number returns a number leaf from its literal text.
func Number(lit string) Value { return Value{Kind: KindNumber, Num: json.Number(lit)} }

// Bool returns a boolean leaf.
func Bool(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// Null returns the null leaf.
func Null() Value { return Value{Kind: KindNull} }

// Object returns an object value with the given members.
func Object(fields ...Field) Value { return Value{Kind: KindObject, Fields: fields} }

// Array returns an array value.
func Array(items ...Value) Value { return Value{Kind: KindArray, Items: items} }

// IsContainer reports whether v is an object or an array.
func (v Value) IsContainer() bool {
	return v.Kind == KindObject || v.Kind == KindArray
}

// Text returns the string payload and whether v is a string.
func (v Value) Text() (string, bool) {
	if v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

// IsBlank reports whether v is a string that is empty after trimming.
func (v Value) IsBlank() bool {
	return v.Kind == KindString && strings.TrimSpace(v.Str) == ""
}

// Member returns the value of an object member. When a key repeats, the
// last occurrence wins, as it does for ordinary JSON decoding.
func (v Value) Member(key string) (Value, bool) {
	if v.Kind != KindObject {
		return Value{}, false
	}
	for i := len(v.Fields) - 1; i >= 0; i-- {
		if v.Fields[i].Key == key {
			return v.Fields[i].Value, true
		}
	}
	return Value{}, false
}

// Scalar renders a leaf the way it would appear in page text.
func (v Value) Scalar() string {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num.String()
	case KindBool:
		if v.Bool {
			return "true"
		}
		return "false"
	}
	return ""
}

// ---------------------------------------------------------------------------
// Decoding
// ---------------------------------------------------------------------------

// Decode parses JSON data into a Value, preserving key order.
func Decode(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	v, err := decodeValue(dec)
	if err != nil {
		return Value{}, fmt.Errorf("parsing JSON: %w", err)
	}
	if t, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return Value{}, fmt.Errorf("parsing JSON: %w", err)
		}
		return Value{}, fmt.Errorf("parsing JSON: unexpected trailing data %v", t)
	}
	return v, nil
}

func decodeValue(dec *json.Decoder) (Value, error) {
	t, err := dec.Token()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return Value{}, io.ErrUnexpectedEOF
		}
		return Value{}, err
	}

	switch tok := t.(type) {
	case json.Delim:
		switch tok {
		case '{':
			obj := Value{Kind: KindObject}
			for dec.More() {
				kt, err := dec.Token()
				if err != nil {
					return Value{}, err
				}
				key, ok := kt.(string)
				if !ok {
					return Value{}, fmt.Errorf("expected string key, got %T", kt)
				}
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, fmt.Errorf("key %q: %w", key, err)
				}
				obj.Fields = append(obj.Fields, Field{Key: key, Value: val})
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return obj, nil
		case '[':
			arr := Value{Kind: KindArray}
			for dec.More() {
				val, err := decodeValue(dec)
				if err != nil {
					return Value{}, fmt.Errorf("index %d: %w", len(arr.Items), err)
				}
				arr.Items = append(arr.Items, val)
			}
			if _, err := dec.Token(); err != nil {
				return Value{}, err
			}
			return arr, nil
		}
		return Value{}, fmt.Errorf("unexpected delimiter %v", tok)
	case string:
		return String(tok), nil
	case json.Number:
		return Value{Kind: KindNumber, Num: tok}, nil
	case bool:
		return Bool(tok), nil
	case nil:
		return Null(), nil
	}
	return Value{}, fmt.Errorf("unexpected token %T", t)
}

// ---------------------------------------------------------------------------
// Encoding
// ---------------------------------------------------------------------------

// Encode renders v as indented JSON with a trailing newline. Non-ASCII text
// and markup characters are written as-is.
func Encode(v Value) []byte {
	var b bytes.Buffer
	writeValue(&b, v, 0)
	b.WriteByte('\n')
	return b.Bytes()
}

const indentUnit = "  "

func writeValue(b *bytes.Buffer, v Value, depth int) {
	switch v.Kind {
	case KindString:
		b.WriteString(quote(v.Str))
	case KindNumber:
		b.WriteString(v.Num.String())
	case KindBool:
		b.WriteString(v.Scalar())
	case KindNull:
		b.WriteString("null")
	case KindObject:
		if len(v.Fields) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteString("{\n")
		for i, f := range v.Fields {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			b.WriteString(quote(f.Key))
			b.WriteString(": ")
			writeValue(b, f.Value, depth+1)
			if i < len(v.Fields)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteByte('}')
	case KindArray:
		if len(v.Items) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteString("[\n")
		for i, it := range v.Items {
			b.WriteString(strings.Repeat(indentUnit, depth+1))
			writeValue(b, it, depth+1)
			if i < len(v.Items)-1 {
				b.WriteByte(',')
			}
			b.WriteByte('\n')
		}
		b.WriteString(strings.Repeat(indentUnit, depth))
		b.WriteByte(']')
	}
}

// quote returns a JSON string literal without HTML escaping.
func quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	return strings.TrimSuffix(buf.String(), "\n")
}
