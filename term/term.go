// Package term models DriftDB queries as immutable expression trees.
//
// A Term is either an operator application (numeric code, positional
// argument Terms, named option Terms) or a literal: scalar datum, byte
// blob, array of Terms, object of Terms, or a raw pre-encoded wire
// fragment. Terms are pure data with no I/O; malformed shapes are only
// rejected when the tree is serialized for the wire.
package term

import (
	"encoding/json"
	"reflect"
)

// Kind discriminates the Term variants.
type Kind uint8

const (
	KindDatum Kind = iota
	KindOp
	KindBinary
	KindArray
	KindObject
	KindRaw
)

// Term is one node of a query expression tree. The zero value is the
// null datum.
type Term struct {
	kind   Kind
	code   Code
	args   []Term
	opts   map[string]Term
	datum  any
	blob   []byte
	items  []Term
	fields map[string]Term
	raw    json.RawMessage
}

// Op builds an operator application with positional arguments.
func Op(code Code, args ...Term) Term {
	return Term{kind: KindOp, code: code, args: args}
}

// OpWith builds an operator application with positional arguments and
// named options.
func OpWith(code Code, args []Term, opts map[string]Term) Term {
	return Term{kind: KindOp, code: code, args: args, opts: opts}
}

// Null is the null datum.
func Null() Term {
	return Term{kind: KindDatum}
}

// Bool is a boolean datum.
func Bool(v bool) Term {
	return Term{kind: KindDatum, datum: v}
}

// Number is a numeric datum.
func Number(v float64) Term {
	return Term{kind: KindDatum, datum: v}
}

// String is a text datum.
func String(v string) Term {
	return Term{kind: KindDatum, datum: v}
}

// Binary is a byte-blob datum, carried on the wire in the protocol's
// binary wrapper object.
func Binary(v []byte) Term {
	blob := make([]byte, len(v))
	copy(blob, v)
	return Term{kind: KindBinary, blob: blob}
}

// Array is a literal array of Terms.
func Array(items ...Term) Term {
	return Term{kind: KindArray, items: items}
}

// Object is a literal object mapping field names to Terms.
func Object(fields map[string]Term) Term {
	return Term{kind: KindObject, fields: fields}
}

// Raw wraps an already-encoded wire fragment. The bytes are emitted
// verbatim inside the query payload.
func Raw(encoded json.RawMessage) Term {
	raw := make(json.RawMessage, len(encoded))
	copy(raw, encoded)
	return Term{kind: KindRaw, raw: raw}
}

// Expr converts a Go value into a Term. Scalars, []byte, slices, and
// string-keyed maps convert structurally; a Term passes through
// unchanged. Unsupported values are carried as-is and rejected at
// serialization time, keeping construction total.
func Expr(v any) Term {
	switch x := v.(type) {
	case Term:
		return x
	case nil:
		return Null()
	case bool:
		return Bool(x)
	case string:
		return String(x)
	case float64:
		return Number(x)
	case float32:
		return Number(float64(x))
	case int:
		return Number(float64(x))
	case int8:
		return Number(float64(x))
	case int16:
		return Number(float64(x))
	case int32:
		return Number(float64(x))
	case int64:
		return Number(float64(x))
	case uint:
		return Number(float64(x))
	case uint8:
		return Number(float64(x))
	case uint16:
		return Number(float64(x))
	case uint32:
		return Number(float64(x))
	case uint64:
		return Number(float64(x))
	case []byte:
		return Binary(x)
	case json.RawMessage:
		return Raw(x)
	case []Term:
		return Array(x...)
	case []any:
		items := make([]Term, len(x))
		for i, item := range x {
			items[i] = Expr(item)
		}
		return Array(items...)
	case map[string]Term:
		return Object(x)
	case map[string]any:
		fields := make(map[string]Term, len(x))
		for k, item := range x {
			fields[k] = Expr(item)
		}
		return Object(fields)
	default:
		return Term{kind: KindDatum, datum: v}
	}
}

func (t Term) Kind() Kind { return t.kind }

// Code is the operator code. Meaningful only for KindOp.
func (t Term) Code() Code { return t.code }

// Args are the positional arguments of an operator node. The returned
// slice must not be mutated.
func (t Term) Args() []Term { return t.args }

// Opts are the named options of an operator node. The returned map must
// not be mutated.
func (t Term) Opts() map[string]Term { return t.opts }

// Datum is the literal scalar value of a KindDatum node.
func (t Term) Datum() any { return t.datum }

// Blob is the payload of a KindBinary node.
func (t Term) Blob() []byte { return t.blob }

// Items are the elements of a KindArray node.
func (t Term) Items() []Term { return t.items }

// Fields are the entries of a KindObject node.
func (t Term) Fields() map[string]Term { return t.fields }

// RawJSON is the pre-encoded fragment of a KindRaw node.
func (t Term) RawJSON() json.RawMessage { return t.raw }

// Equal reports structural equality of two trees.
func (t Term) Equal(other Term) bool {
	if t.kind != other.kind {
		return false
	}
	switch t.kind {
	case KindDatum:
		return reflect.DeepEqual(t.datum, other.datum)
	case KindBinary:
		return string(t.blob) == string(other.blob)
	case KindRaw:
		return string(t.raw) == string(other.raw)
	case KindArray:
		return termsEqual(t.items, other.items)
	case KindObject:
		return termMapsEqual(t.fields, other.fields)
	case KindOp:
		return t.code == other.code &&
			termsEqual(t.args, other.args) &&
			termMapsEqual(t.opts, other.opts)
	}
	return false
}

func termsEqual(a, b []Term) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func termMapsEqual(a, b map[string]Term) bool {
	if len(a) != len(b) {
		return false
	}
	for k, av := range a {
		bv, ok := b[k]
		if !ok || !av.Equal(bv) {
			return false
		}
	}
	return true
}
