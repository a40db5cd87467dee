// Package codec serializes query terms into the wire's nested-array JSON
// encoding and parses raw response payloads into typed values.
package codec

import (
	"encoding/base64"
	"encoding/json"
	"math"
	"unicode/utf8"

	"github.com/driftdb/driftdb-go/term"
)

// QueryType discriminates the query envelope kinds.
type QueryType int

const (
	QueryStart       QueryType = 1
	QueryContinue    QueryType = 2
	QueryStop        QueryType = 3
	QueryNoreplyWait QueryType = 4
)

const (
	pseudoTypeKey    = "$reql_type$"
	pseudoKindBinary = "BINARY"
)

// EncodeTerm renders a term tree as its wire JSON form. Operator nodes
// become [code, [args...]] with a trailing options object when options
// are present; literal arrays and objects are wrapped in MAKE_ARRAY and
// MAKE_OBJ so the server can tell data from calls.
func EncodeTerm(t term.Term) (json.RawMessage, error) {
	v, err := termValue(t)
	if err != nil {
		return nil, err
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, encodeErrorf("marshal: %v", err)
	}
	return out, nil
}

// EncodeQuery builds the query envelope [kind, term, opts]. Control
// queries (CONTINUE, STOP, NOREPLY_WAIT) carry no term and encode as the
// one-element form [kind].
func EncodeQuery(kind QueryType, encodedTerm json.RawMessage, opts map[string]any) ([]byte, error) {
	if encodedTerm == nil {
		return json.Marshal([]any{int(kind)})
	}
	if opts == nil {
		opts = map[string]any{}
	}
	out, err := json.Marshal([]any{int(kind), encodedTerm, opts})
	if err != nil {
		return nil, encodeErrorf("marshal query: %v", err)
	}
	return out, nil
}

func termValue(t term.Term) (any, error) {
	switch t.Kind() {
	case term.KindDatum:
		return datumValue(t.Datum())

	case term.KindBinary:
		return map[string]any{
			pseudoTypeKey: pseudoKindBinary,
			"data":        base64.StdEncoding.EncodeToString(t.Blob()),
		}, nil

	case term.KindRaw:
		return t.RawJSON(), nil

	case term.KindArray:
		items := make([]any, len(t.Items()))
		for i, item := range t.Items() {
			v, err := termValue(item)
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return []any{int(term.CodeMakeArray), items}, nil

	case term.KindObject:
		fields, err := fieldValues(t.Fields())
		if err != nil {
			return nil, err
		}
		return []any{int(term.CodeMakeObj), []any{}, fields}, nil

	case term.KindOp:
		args := make([]any, len(t.Args()))
		for i, arg := range t.Args() {
			v, err := termValue(arg)
			if err != nil {
				return nil, err
			}
			args[i] = v
		}
		call := []any{int(t.Code()), args}
		if len(t.Opts()) > 0 {
			opts, err := fieldValues(t.Opts())
			if err != nil {
				return nil, err
			}
			call = append(call, opts)
		}
		return call, nil
	}
	return nil, encodeErrorf("unknown term kind %d", t.Kind())
}

func fieldValues(fields map[string]term.Term) (map[string]any, error) {
	out := make(map[string]any, len(fields))
	for k, field := range fields {
		if !utf8.ValidString(k) {
			return nil, encodeErrorf("field name is not valid UTF-8")
		}
		v, err := termValue(field)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

func datumValue(v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		if !utf8.ValidString(x) {
			return nil, encodeErrorf("string datum is not valid UTF-8")
		}
		return x, nil
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, encodeErrorf("non-finite number %v", x)
		}
		return x, nil
	default:
		return nil, encodeErrorf("unsupported datum type %T", v)
	}
}
