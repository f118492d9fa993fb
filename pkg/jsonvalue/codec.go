// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

package jsonvalue

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/buger/jsonparser"
)

// ErrInvalidJSON is returned by Parse for input that is not a single
// well-formed JSON document.
var ErrInvalidJSON = errors.New("invalid JSON document")

// Parse decodes data into a Value, keeping object members in source order and
// number literals as written.
func Parse(data []byte) (Value, error) {
	// jsonparser is lenient about malformed input, so syntax is checked first.
	if !json.Valid(data) {
		return Value{}, ErrInvalidJSON
	}

	raw, typ, _, err := jsonparser.Get(data)
	if err != nil {
		return Value{}, fmt.Errorf("locate document root: %w", err)
	}
	return decode(raw, typ)
}

func decode(raw []byte, typ jsonparser.ValueType) (Value, error) {
	switch typ {
	case jsonparser.Null:
		return Value{}, nil
	case jsonparser.Boolean:
		b, err := jsonparser.ParseBoolean(raw)
		if err != nil {
			return Value{}, fmt.Errorf("decode boolean: %w", err)
		}
		return NewBool(b), nil
	case jsonparser.Number:
		return NewNumber(string(raw)), nil
	case jsonparser.String:
		s, err := jsonparser.ParseString(raw)
		if err != nil {
			return Value{}, fmt.Errorf("decode string: %w", err)
		}
		return NewString(s), nil
	case jsonparser.Array:
		return decodeArray(raw)
	case jsonparser.Object:
		return decodeObject(raw)
	default:
		return Value{}, fmt.Errorf("unexpected value type %s", typ)
	}
}

func decodeArray(raw []byte) (Value, error) {
	elems := []Value{}
	var inner error
	_, err := jsonparser.ArrayEach(raw, func(val []byte, typ jsonparser.ValueType, _ int, cbErr error) {
		if inner != nil {
			return
		}
		if cbErr != nil {
			inner = cbErr
			return
		}
		elem, err := decode(val, typ)
		if err != nil {
			inner = err
			return
		}
		elems = append(elems, elem)
	})
	if err == nil {
		err = inner
	}
	if err != nil {
		return Value{}, fmt.Errorf("decode array: %w", err)
	}
	return Value{kind: Array, elems: elems}, nil
}

func decodeObject(raw []byte) (Value, error) {
	obj := Value{kind: Object, members: []Member{}}
	err := jsonparser.ObjectEach(raw, func(key, val []byte, typ jsonparser.ValueType, _ int) error {
		member, err := decode(val, typ)
		if err != nil {
			return err
		}
		// key aliases a scratch buffer inside jsonparser; string() copies it.
		k := string(key)
		if i := obj.index(k); i >= 0 {
			obj.members[i].Value = member
			return nil
		}
		obj.members = append(obj.members, Member{Key: k, Value: member})
		return nil
	})
	if err != nil {
		return Value{}, fmt.Errorf("decode object: %w", err)
	}
	return obj, nil
}

// Encode renders v as compact JSON. Characters significant to HTML are left
// unescaped; U+2028 and U+2029 are written as \u2028 and \u2029. Integer
// literals are kept as written, other numbers in shortest form.
func (v Value) Encode() []byte {
	e := newEncoder()
	e.value(v)
	return e.out.Bytes()
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return v.Encode(), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

type encoder struct {
	out     bytes.Buffer
	scratch bytes.Buffer
	str     *json.Encoder
}

func newEncoder() *encoder {
	e := &encoder{}
	e.str = json.NewEncoder(&e.scratch)
	e.str.SetEscapeHTML(false)
	return e
}

func (e *encoder) value(v Value) {
	switch v.kind {
	case Null:
		e.out.WriteString("null")
	case Bool:
		e.out.WriteString(strconv.FormatBool(v.flag))
	case Number:
		e.out.WriteString(formatNumber(v.text))
	case String:
		e.string(v.text)
	case Array:
		e.out.WriteByte('[')
		for i, elem := range v.elems {
			if i > 0 {
				e.out.WriteByte(',')
			}
			e.value(elem)
		}
		e.out.WriteByte(']')
	case Object:
		e.out.WriteByte('{')
		for i, m := range v.members {
			if i > 0 {
				e.out.WriteByte(',')
			}
			e.string(m.Key)
			e.out.WriteByte(':')
			e.value(m.Value)
		}
		e.out.WriteByte('}')
	}
}

func (e *encoder) string(s string) {
	e.scratch.Reset()
	// Encoding a Go string cannot fail.
	_ = e.str.Encode(s)
	e.out.Write(bytes.TrimSuffix(e.scratch.Bytes(), []byte{'\n'}))
}

// ToString renders v the way a loosely typed peer would print it: strings
// verbatim, integer literals verbatim, other numbers in shortest decimal form,
// booleans as true/false, null as "null" and containers as compact JSON.
func (v Value) ToString() string {
	switch v.kind {
	case String:
		return v.text
	case Number:
		return formatNumber(v.text)
	case Bool:
		return strconv.FormatBool(v.flag)
	case Null:
		return "null"
	default:
		return string(v.Encode())
	}
}

func formatNumber(literal string) string {
	if isIntegerLiteral(literal) {
		return literal
	}
	f, err := strconv.ParseFloat(literal, 64)
	if err != nil {
		return literal
	}
	if f == 0 {
		return "0"
	}
	if abs := math.Abs(f); abs >= 1e-6 && abs < 1e21 {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	// Go pads exponents to two digits (1e-07); peers print 1e-7.
	s := strconv.FormatFloat(f, 'e', -1, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[:1]
	digits := strings.TrimLeft(exp[1:], "0")
	if digits == "" {
		digits = "0"
	}
	return mantissa + "e" + sign + digits
}

func isIntegerLiteral(s string) bool {
	s = strings.TrimPrefix(s, "-")
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
