package codec

import (
	"encoding/base64"
	"encoding/json"
)

// ResponseType discriminates the response envelope kinds.
type ResponseType int

const (
	ResponseSuccessAtom     ResponseType = 1
	ResponseSuccessSequence ResponseType = 2
	ResponseSuccessPartial  ResponseType = 3
	ResponseWaitComplete    ResponseType = 4
	ResponseSuccessFeed     ResponseType = 5
	ResponseClientError     ResponseType = 16
	ResponseCompileError    ResponseType = 17
	ResponseRuntimeError    ResponseType = 18
)

// IsError reports whether the type carries a server-side query failure.
func (t ResponseType) IsError() bool {
	return t == ResponseClientError || t == ResponseCompileError || t == ResponseRuntimeError
}

// Response is one decoded response envelope [type, result, options].
type Response struct {
	Type         ResponseType
	Results      []any
	ErrorMessage string
	ErrorKind    int
	Backtrace    []any
	Notes        []int
	Profile      any
}

type responseOptions struct {
	Backtrace []any `json:"b"`
	ErrorKind int   `json:"e"`
	Notes     []int `json:"n"`
	Profile   any   `json:"p"`
}

// DecodeResponse parses one response payload. Any shape violation is a
// DecodeError; the framing layer treats that as unrecoverable for the
// connection.
func DecodeResponse(payload []byte) (*Response, error) {
	var env []json.RawMessage
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, decodeErrorf("response envelope is not an array: %v", err)
	}
	if len(env) < 2 {
		return nil, decodeErrorf("response envelope has %d elements, want at least 2", len(env))
	}

	var code int
	if err := json.Unmarshal(env[0], &code); err != nil {
		return nil, decodeErrorf("response type: %v", err)
	}
	rt := ResponseType(code)
	switch rt {
	case ResponseSuccessAtom, ResponseSuccessSequence, ResponseSuccessPartial,
		ResponseWaitComplete, ResponseSuccessFeed,
		ResponseClientError, ResponseCompileError, ResponseRuntimeError:
	default:
		return nil, decodeErrorf("unknown response type %d", code)
	}

	var rawResults []json.RawMessage
	if err := json.Unmarshal(env[1], &rawResults); err != nil {
		return nil, decodeErrorf("result is not an array: %v", err)
	}

	resp := &Response{Type: rt}
	if len(env) >= 3 {
		var opts responseOptions
		if err := json.Unmarshal(env[2], &opts); err != nil {
			return nil, decodeErrorf("response options: %v", err)
		}
		resp.Backtrace = opts.Backtrace
		resp.ErrorKind = opts.ErrorKind
		resp.Notes = opts.Notes
		resp.Profile = opts.Profile
	}

	if rt.IsError() {
		if len(rawResults) != 1 {
			return nil, decodeErrorf("error response carries %d results, want 1", len(rawResults))
		}
		var msg string
		if err := json.Unmarshal(rawResults[0], &msg); err != nil {
			return nil, decodeErrorf("error message is not a string: %v", err)
		}
		resp.ErrorMessage = msg
		return resp, nil
	}

	resp.Results = make([]any, len(rawResults))
	for i, raw := range rawResults {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, err
		}
		resp.Results[i] = v
	}
	return resp, nil
}

func decodeValue(raw json.RawMessage) (any, error) {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, decodeErrorf("result value: %v", err)
	}
	return convertValue(v)
}

// convertValue walks a decoded JSON value, lifting pseudo-type wrapper
// objects into their tagged representation.
func convertValue(v any) (any, error) {
	switch x := v.(type) {
	case map[string]any:
		if kind, ok := x[pseudoTypeKey].(string); ok {
			return convertPseudo(kind, x)
		}
		out := make(map[string]any, len(x))
		for k, item := range x {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			converted, err := convertValue(item)
			if err != nil {
				return nil, err
			}
			out[i] = converted
		}
		return out, nil
	default:
		return v, nil
	}
}

func convertPseudo(kind string, fields map[string]any) (any, error) {
	if kind == pseudoKindBinary {
		data, ok := fields["data"].(string)
		if !ok {
			return nil, decodeErrorf("binary wrapper without data field")
		}
		blob, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return nil, decodeErrorf("binary wrapper data: %v", err)
		}
		return blob, nil
	}
	payload := make(map[string]any, len(fields)-1)
	for k, v := range fields {
		if k == pseudoTypeKey {
			continue
		}
		payload[k] = v
	}
	return Pseudo{Kind: kind, Fields: payload}, nil
}
