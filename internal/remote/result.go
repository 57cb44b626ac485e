package remote

import (
	"context"
	"encoding/json"
)

// Kind classifies the outcome of a remote call.
type Kind int

const (
	KindOK Kind = iota
	KindHTTPError
	KindNetworkError
	KindParseError
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindHTTPError:
		return "http_error"
	case KindNetworkError:
		return "network_error"
	case KindParseError:
		return "parse_error"
	default:
		return "unknown"
	}
}

// Result is the outcome of a typed remote call. Err is nil only for KindOK.
type Result[T any] struct {
	Kind  Kind
	Value T
	Err   *Error
}

func (r Result[T]) OK() bool {
	return r.Kind == KindOK
}

// Unwrap converts the result into the usual value/error pair.
func (r Result[T]) Unwrap() (T, error) {
	if r.Err != nil {
		return r.Value, r.Err
	}
	return r.Value, nil
}

// Call performs the request and decodes a successful body into T. A body
// that does not decode is a parse error carrying the response status.
// Plain-text bodies decode only into string results.
func Call[T any](ctx context.Context, c *Client, method, path string, body any) Result[T] {
	resp, err := c.Do(ctx, method, path, body)
	if err != nil {
		re := AsError(err)
		if re.Code == CodeNetwork {
			return Result[T]{Kind: KindNetworkError, Err: re}
		}
		return Result[T]{Kind: KindHTTPError, Err: re}
	}
	return decode[T](resp)
}

func decode[T any](resp *Response) Result[T] {
	var v T
	if len(resp.Body) == 0 {
		return Result[T]{Kind: KindOK, Value: v}
	}

	if !resp.JSON {
		if s, ok := any(&v).(*string); ok {
			*s = string(resp.Body)
			return Result[T]{Kind: KindOK, Value: v}
		}
		return Result[T]{Kind: KindParseError, Err: badFormat(resp, "respuesta no es JSON")}
	}

	if err := json.Unmarshal(resp.Body, &v); err != nil {
		return Result[T]{Kind: KindParseError, Err: badFormat(resp, "Formato inesperado")}
	}
	return Result[T]{Kind: KindOK, Value: v}
}

func badFormat(resp *Response, msg string) *Error {
	return &Error{Code: CodeBadFormat, Status: resp.Status, Message: msg, Data: string(resp.Body)}
}
