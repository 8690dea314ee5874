package domain

import (
	"strings"
	"testing"
)

func TestResultSuccess(t *testing.T) {
	usage := Usage{PromptTokens: 120, CompletionTokens: 40, TotalTokens: 160}
	res := Success(Completion{Text: "hello"}, usage, 0.0016)

	if !res.Ok() {
		t.Fatalf("expected Ok()")
	}
	if res.Err() != nil {
		t.Fatalf("expected nil Err(), got %v", res.Err())
	}
	if res.Value().Text != "hello" {
		t.Fatalf("unexpected value: %+v", res.Value())
	}
	if res.Usage() != usage {
		t.Fatalf("unexpected usage: %+v", res.Usage())
	}
	if res.Cost() != 0.0016 {
		t.Fatalf("unexpected cost: %v", res.Cost())
	}
}

func TestResultValuePanicsOnFailure(t *testing.T) {
	res := Failure[Completion](GatewayTimeout, "deadline exceeded")
	if res.Ok() {
		t.Fatalf("expected failure result")
	}
	if res.Err() == nil || res.Err().Code != GatewayTimeout {
		t.Fatalf("unexpected error: %v", res.Err())
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected Value() to panic on failure")
		}
		if !strings.Contains(r.(string), "timeout") {
			t.Fatalf("panic message should name the failure code, got %v", r)
		}
	}()
	_ = res.Value()
}

func TestGatewayErrorCodeTransient(t *testing.T) {
	transient := []GatewayErrorCode{GatewayTimeout, GatewayProviderError}
	for _, code := range transient {
		if !code.Transient() {
			t.Fatalf("expected %s to be transient", code)
		}
	}
	permanent := []GatewayErrorCode{GatewayUnparseableOutput, GatewayInvalidSchema, GatewayCanceled}
	for _, code := range permanent {
		if code.Transient() {
			t.Fatalf("expected %s to be permanent", code)
		}
	}
}

func TestDeliveryFinal(t *testing.T) {
	if (Delivery{Attempt: 1, MaxAttempts: 3}).Final() {
		t.Fatalf("attempt 1/3 should not be final")
	}
	if !(Delivery{Attempt: 3, MaxAttempts: 3}).Final() {
		t.Fatalf("attempt 3/3 should be final")
	}
	if (Delivery{Attempt: 5}).Final() {
		t.Fatalf("unbounded delivery should never be final")
	}
}
