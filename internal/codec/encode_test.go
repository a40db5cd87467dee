package codec

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/driftdb/driftdb-go/internal/testutil/testlog"
	"github.com/driftdb/driftdb-go/term"
)

func TestEncodeGetByKey(t *testing.T) {
	testlog.Start(t)
	q := term.Get(term.Op(term.CodeTable, term.String("users")), "id-42")
	out, err := EncodeTerm(q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[16,[[15,["users"]],"id-42"]]`
	if string(out) != want {
		t.Fatalf("encoded %s, want %s", out, want)
	}
}

func TestEncodeStartQueryEnvelope(t *testing.T) {
	testlog.Start(t)
	q := term.Get(term.Op(term.CodeTable, term.String("users")), "id-42")
	encoded, err := EncodeTerm(q)
	if err != nil {
		t.Fatalf("encode term: %v", err)
	}
	payload, err := EncodeQuery(QueryStart, encoded, nil)
	if err != nil {
		t.Fatalf("encode query: %v", err)
	}
	want := `[1,[16,[[15,["users"]],"id-42"]],{}]`
	if string(payload) != want {
		t.Fatalf("payload %s, want %s", payload, want)
	}
}

func TestEncodeControlQueriesHaveNoTerm(t *testing.T) {
	testlog.Start(t)
	for kind, want := range map[QueryType]string{
		QueryContinue:    `[2]`,
		QueryStop:        `[3]`,
		QueryNoreplyWait: `[4]`,
	} {
		payload, err := EncodeQuery(kind, nil, nil)
		if err != nil {
			t.Fatalf("encode %d: %v", kind, err)
		}
		if string(payload) != want {
			t.Fatalf("kind %d payload %s, want %s", kind, payload, want)
		}
	}
}

func TestEncodeWrapsLiteralArray(t *testing.T) {
	testlog.Start(t)
	q := term.Op(term.CodeCount, term.Array(term.Number(1), term.Number(2)))
	out, err := EncodeTerm(q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[43,[[2,[1,2]]]]`
	if string(out) != want {
		t.Fatalf("encoded %s, want %s", out, want)
	}
}

func TestEncodeWrapsLiteralObject(t *testing.T) {
	testlog.Start(t)
	q := term.Object(map[string]term.Term{"name": term.String("alice")})
	out, err := EncodeTerm(q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[3,[],{"name":"alice"}]`
	if string(out) != want {
		t.Fatalf("encoded %s, want %s", out, want)
	}
}

func TestEncodeOpOptions(t *testing.T) {
	testlog.Start(t)
	q := term.OpWith(term.CodeTableCreate,
		[]term.Term{term.DB("test"), term.String("users")},
		map[string]term.Term{"primary_key": term.String("uid")})
	out, err := EncodeTerm(q)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[60,[[14,["test"]],"users"],{"primary_key":"uid"}]`
	if string(out) != want {
		t.Fatalf("encoded %s, want %s", out, want)
	}
}

func TestEncodeBinaryWrapper(t *testing.T) {
	testlog.Start(t)
	out, err := EncodeTerm(term.Binary([]byte{0xDE, 0xAD}))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var wrapper map[string]string
	if err := json.Unmarshal(out, &wrapper); err != nil {
		t.Fatalf("unmarshal wrapper: %v", err)
	}
	if wrapper["$reql_type$"] != "BINARY" || wrapper["data"] != "3q0=" {
		t.Fatalf("unexpected wrapper: %v", wrapper)
	}
}

func TestEncodeRawPassthrough(t *testing.T) {
	testlog.Start(t)
	raw := json.RawMessage(`[15,["users"]]`)
	out, err := EncodeTerm(term.Raw(raw))
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(out) != string(raw) {
		t.Fatalf("encoded %s, want %s", out, raw)
	}
}

func TestEncodeRejectsNonFiniteNumbers(t *testing.T) {
	testlog.Start(t)
	for _, v := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		_, err := EncodeTerm(term.Number(v))
		var encErr *EncodeError
		if !errors.As(err, &encErr) {
			t.Fatalf("value %v: expected EncodeError, got %v", v, err)
		}
	}
}

func TestEncodeRejectsInvalidUTF8(t *testing.T) {
	testlog.Start(t)
	_, err := EncodeTerm(term.String(string([]byte{0xff, 0xfe})))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
}

func TestEncodeRejectsOpaqueDatum(t *testing.T) {
	testlog.Start(t)
	_, err := EncodeTerm(term.Expr(struct{ X int }{1}))
	var encErr *EncodeError
	if !errors.As(err, &encErr) {
		t.Fatalf("expected EncodeError, got %v", err)
	}
}
