// ABOUTME: Tests for the risk gate threshold and step-up delegation
// ABOUTME: Uses a fake ceremony provider to exercise gate decisions

package risk

import (
	"context"
	"testing"

	"github.com/2389/agentpay-gateway/internal/purchase"
)

type fakeCeremonies struct {
	registered bool
	outcome    bool

	stepUpCalled bool
}

func (f *fakeCeremonies) HasRegisteredAuthenticator(ctx context.Context, actorID string) bool {
	return f.registered
}

func (f *fakeCeremonies) PerformStepUp(ctx context.Context, actorID string) bool {
	f.stepUpCalled = true
	return f.outcome
}

func testRequest(amount float64) *purchase.Request {
	return &purchase.Request{
		AgentID:     "agent-1",
		OwnerID:     "owner-1",
		Amount:      amount,
		Merchant:    "udemy",
		ProductType: "course",
		ProductID:   "go-101",
		Currency:    "USD",
	}
}

func TestGate_StepUpRequired_Threshold(t *testing.T) {
	gate := NewGate(1000, &fakeCeremonies{})

	cases := []struct {
		amount float64
		want   bool
	}{
		{999.99, false},
		{1000, false}, // at the threshold, no step-up
		{1000.01, true},
		{5000, true},
	}
	for _, tc := range cases {
		if got := gate.StepUpRequired(testRequest(tc.amount)); got != tc.want {
			t.Errorf("StepUpRequired(amount=%v) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestGate_DefaultThreshold(t *testing.T) {
	gate := NewGate(0, &fakeCeremonies{})

	if gate.StepUpRequired(testRequest(1000)) {
		t.Error("amount at default threshold should not require step-up")
	}
	if !gate.StepUpRequired(testRequest(1001)) {
		t.Error("amount above default threshold should require step-up")
	}
}

func TestGate_CustomThreshold(t *testing.T) {
	gate := NewGate(250, &fakeCeremonies{})

	if gate.StepUpRequired(testRequest(250)) {
		t.Error("amount at custom threshold should not require step-up")
	}
	if !gate.StepUpRequired(testRequest(251)) {
		t.Error("amount above custom threshold should require step-up")
	}
}

func TestGate_PerformStepUp_NoAuthenticator(t *testing.T) {
	ceremonies := &fakeCeremonies{registered: false, outcome: true}
	gate := NewGate(1000, ceremonies)

	if gate.PerformStepUp(context.Background(), "user-1") {
		t.Error("step-up should fail when actor has no registered authenticator")
	}
	if ceremonies.stepUpCalled {
		t.Error("ceremony should not be attempted without a registered authenticator")
	}
}

func TestGate_PerformStepUp_Success(t *testing.T) {
	ceremonies := &fakeCeremonies{registered: true, outcome: true}
	gate := NewGate(1000, ceremonies)

	if !gate.PerformStepUp(context.Background(), "user-1") {
		t.Error("step-up should succeed when the ceremony succeeds")
	}
}

func TestGate_PerformStepUp_CeremonyFails(t *testing.T) {
	ceremonies := &fakeCeremonies{registered: true, outcome: false}
	gate := NewGate(1000, ceremonies)

	if gate.PerformStepUp(context.Background(), "user-1") {
		t.Error("step-up should fail when the ceremony fails")
	}
}
