package domain

import "encoding/json"

// Source tells whether a value is the authoritative remote result or a local
// substitute produced after a remote failure.
type Source string

const (
	SourceRemote Source = "remote"
	SourceLocal  Source = "local"
)

// Fallback describes the remote failure that caused a local substitute.
type Fallback struct {
	Code    string `json:"code"`
	Status  int    `json:"status"`
	Message string `json:"error"`
}

// Sourced carries a value together with where it came from.
type Sourced[T any] struct {
	Value    T
	Source   Source
	Fallback *Fallback
}

func Remote[T any](v T) Sourced[T] {
	return Sourced[T]{Value: v, Source: SourceRemote}
}

// Local wraps a locally produced value. fb is nil when no remote call was
// attempted at all (anonymous mode).
func Local[T any](v T, fb *Fallback) Sourced[T] {
	return Sourced[T]{Value: v, Source: SourceLocal, Fallback: fb}
}

// IsFallback reports whether the value substitutes a failed remote call.
func (s Sourced[T]) IsFallback() bool {
	return s.Fallback != nil
}

type sourcedWire struct {
	Data     any    `json:"data"`
	Source   Source `json:"_source"`
	Fallback bool   `json:"_fallback"`
	Code     string `json:"_code,omitempty"`
	Status   *int   `json:"_status,omitempty"`
	Error    string `json:"_error,omitempty"`
}

func (s Sourced[T]) MarshalJSON() ([]byte, error) {
	w := sourcedWire{Data: s.Value, Source: s.Source}
	if s.Fallback != nil {
		status := s.Fallback.Status
		w.Fallback = true
		w.Code = s.Fallback.Code
		w.Status = &status
		w.Error = s.Fallback.Message
	}
	return json.Marshal(w)
}
