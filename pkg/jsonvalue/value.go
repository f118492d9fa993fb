// Copyright © 2025 Prabhjot Singh Sethi, All Rights reserved
// Author: Prabhjot Singh Sethi <prabhjot.sethi@gmail.com>

// Package jsonvalue models an untyped JSON document as a tagged variant so
// JSON-RPC payloads can be inspected and rewritten without losing member
// order or numeric precision.
package jsonvalue

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	Null Kind = iota
	Bool
	Number
	String
	Array
	Object
)

// String returns the JSON type name of the kind.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "boolean"
	case Number:
		return "number"
	case String:
		return "string"
	case Array:
		return "array"
	case Object:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of an object, kept in source order.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero Value is JSON null.
type Value struct {
	kind Kind
	// flag carries the boolean payload.
	flag bool
	// text carries the string payload or the number literal as written.
	text    string
	elems   []Value
	members []Member
}

// NewBool returns a boolean value.
func NewBool(b bool) Value {
	return Value{kind: Bool, flag: b}
}

// NewString returns a string value.
func NewString(s string) Value {
	return Value{kind: String, text: s}
}

// NewNumber returns a number value carrying literal verbatim. The literal is
// not validated.
func NewNumber(literal string) Value {
	return Value{kind: Number, text: literal}
}

// NewArray returns an array holding elems in order.
func NewArray(elems ...Value) Value {
	if elems == nil {
		elems = []Value{}
	}
	return Value{kind: Array, elems: elems}
}

// NewObject returns an object holding members in order. Later duplicates of a
// key replace the earlier value in place.
func NewObject(members ...Member) Value {
	obj := Value{kind: Object, members: make([]Member, 0, len(members))}
	for _, m := range members {
		if i := obj.index(m.Key); i >= 0 {
			obj.members[i].Value = m.Value
			continue
		}
		obj.members = append(obj.members, m)
	}
	return obj
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == Null }

// Text returns the string payload of a string, or the literal of a number.
func (v Value) Text() string {
	if v.kind == String || v.kind == Number {
		return v.text
	}
	return ""
}

// Elements returns the elements of an array. The slice must not be modified.
func (v Value) Elements() []Value {
	if v.kind != Array {
		return nil
	}
	return v.elems
}

// Members returns the members of an object in order. The slice must not be
// modified.
func (v Value) Members() []Member {
	if v.kind != Object {
		return nil
	}
	return v.members
}

// Len returns the number of elements or members; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case Array:
		return len(v.elems)
	case Object:
		return len(v.members)
	default:
		return 0
	}
}

// Field looks up key on an object.
func (v Value) Field(key string) (Value, bool) {
	if i := v.index(key); i >= 0 {
		return v.members[i].Value, true
	}
	return Value{}, false
}

// With returns a copy of the object with key set to val. An existing key keeps
// its position; a new key is appended. Non-objects are returned unchanged.
func (v Value) With(key string, val Value) Value {
	if v.kind != Object {
		return v
	}
	members := make([]Member, len(v.members), len(v.members)+1)
	copy(members, v.members)
	if i := v.index(key); i >= 0 {
		members[i].Value = val
	} else {
		members = append(members, Member{Key: key, Value: val})
	}
	return Value{kind: Object, members: members}
}

// Without returns a copy of the object with key removed.
func (v Value) Without(key string) Value {
	i := v.index(key)
	if i < 0 {
		return v
	}
	members := make([]Member, 0, len(v.members)-1)
	members = append(members, v.members[:i]...)
	members = append(members, v.members[i+1:]...)
	return Value{kind: Object, members: members}
}

func (v Value) index(key string) int {
	if v.kind != Object {
		return -1
	}
	for i := range v.members {
		if v.members[i].Key == key {
			return i
		}
	}
	return -1
}

// Equal reports whether a and b hold the same JSON value. Object members are
// compared by key regardless of their order.
func Equal(a, b Value) bool {
	if a.kind != b.kind {
		return false
	}
	switch a.kind {
	case Null:
		return true
	case Bool:
		return a.flag == b.flag
	case Number, String:
		return a.text == b.text
	case Array:
		if len(a.elems) != len(b.elems) {
			return false
		}
		for i := range a.elems {
			if !Equal(a.elems[i], b.elems[i]) {
				return false
			}
		}
		return true
	case Object:
		if len(a.members) != len(b.members) {
			return false
		}
		for _, m := range a.members {
			other, ok := b.Field(m.Key)
			if !ok || !Equal(m.Value, other) {
				return false
			}
		}
		return true
	}
	return false
}
