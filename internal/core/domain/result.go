package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type GatewayErrorCode string

const (
	GatewayTimeout           GatewayErrorCode = "timeout"
	GatewayProviderError     GatewayErrorCode = "provider_error"
	GatewayUnparseableOutput GatewayErrorCode = "unparseable_output"
	GatewayInvalidSchema     GatewayErrorCode = "invalid_schema"
	GatewayCanceled          GatewayErrorCode = "canceled"
)

// Transient reports whether a fresh attempt against the provider could
// plausibly succeed. Validation outcomes are structural and never transient.
func (c GatewayErrorCode) Transient() bool {
	return c == GatewayTimeout || c == GatewayProviderError
}

type GatewayError struct {
	Code    GatewayErrorCode `json:"code"`
	Message string           `json:"message"`
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Code, e.Message)
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Result is the tagged outcome of a gateway call. Callers branch on Ok before
// touching Value; reading the value of a failed Result is a programming error
// and panics rather than returning a zero value.
type Result[T any] struct {
	value   T
	usage   Usage
	cost    float64
	failure *GatewayError
}

func Success[T any](value T, usage Usage, cost float64) Result[T] {
	return Result[T]{value: value, usage: usage, cost: cost}
}

func Failure[T any](code GatewayErrorCode, message string) Result[T] {
	return Result[T]{failure: &GatewayError{Code: code, Message: message}}
}

func (r Result[T]) Ok() bool {
	return r.failure == nil
}

func (r Result[T]) Value() T {
	if r.failure != nil {
		panic(fmt.Sprintf("domain: Value called on failed Result (%s)", r.failure.Code))
	}
	return r.value
}

// Err returns nil for a successful result.
func (r Result[T]) Err() *GatewayError {
	return r.failure
}

func (r Result[T]) Usage() Usage {
	return r.usage
}

// Cost is the provider cost estimate for the call, in account currency units.
func (r Result[T]) Cost() float64 {
	return r.cost
}

// CompletionRequest is one sanitized round trip to the completion provider.
// Operation labels logs and metrics. A zero Timeout uses the gateway default.
type CompletionRequest struct {
	Operation string
	System    string
	Prompt    string
	Timeout   time.Duration
}

type Completion struct {
	Text string `json:"text"`
}

// ProviderReply is the provider's raw output before gateway post-processing.
type ProviderReply struct {
	Text  string
	Usage Usage
}

// StructuredCompletion is a completion parsed and validated against the
// declared schema for one analysis kind.
type StructuredCompletion struct {
	Kind          AnalysisKind    `json:"kind"`
	SchemaVersion string          `json:"schema_version"`
	Payload       json.RawMessage `json:"payload"`
}
