package enrollment

import (
	"context"
	"testing"

	"github.com/trezcool/tutorias/core"
)

func TestStateOf(t *testing.T) {
	tests := []struct {
		status  Status
		request RequestStatus
		active  bool
		want    State
	}{
		{StatusPending, RequestPending, true, StateRequested},
		{StatusPending, RequestEnrolled, true, StateApproved},
		{StatusPending, RequestRejected, true, StateRejected},
		{StatusApproved, RequestEnrolled, true, StateAwaitingPayment},
		{StatusApproved, RequestPending, true, StateAwaitingPayment},
		{StatusActive, RequestEnrolled, true, StateActive},
		{StatusActive, RequestPending, true, StateActive},
		{StatusCancelled, RequestPending, true, StateCancelled},
		{StatusCancelled, RequestRejected, true, StateCancelled},
		{StatusPending, RequestPending, false, StateCancelled},
		{StatusActive, RequestEnrolled, false, StateCancelled},
	}
	for _, tt := range tests {
		t.Run(string(tt.status)+"/"+string(tt.request), func(t *testing.T) {
			if got := StateOf(tt.status, tt.request, tt.active); got != tt.want {
				t.Errorf("StateOf(%s, %s, %v) = %s, want %s", tt.status, tt.request, tt.active, got, tt.want)
			}
		})
	}
}

func TestTransitions(t *testing.T) {
	ctx := context.Background()

	requestTests := []struct {
		from    RequestStatus
		event   string
		want    RequestStatus
		wantErr bool
	}{
		{RequestPending, eventApprove, RequestEnrolled, false},
		{RequestPending, eventReject, RequestRejected, false},
		{RequestEnrolled, eventApprove, "", true},
		{RequestEnrolled, eventReject, "", true},
		{RequestRejected, eventApprove, "", true},
		{RequestRejected, eventReject, "", true},
	}
	for _, tt := range requestTests {
		got, err := transitionRequest(ctx, tt.from, tt.event, tt.event)
		if (err != nil) != tt.wantErr {
			t.Errorf("transitionRequest(%s, %s) error = %v, wantErr %v", tt.from, tt.event, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !core.IsInvalidState(err) {
			t.Errorf("transitionRequest(%s, %s) error = %v, want an invalid state error", tt.from, tt.event, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("transitionRequest(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
		}
	}

	statusTests := []struct {
		from    Status
		event   string
		want    Status
		wantErr bool
	}{
		{StatusPending, eventActivate, StatusActive, false},
		{StatusApproved, eventActivate, StatusActive, false},
		{StatusPending, eventCancel, StatusCancelled, false},
		{StatusPending, eventWithdraw, StatusCancelled, false},
		{StatusApproved, eventCancel, "", true},
		{StatusActive, eventActivate, "", true},
		{StatusActive, eventCancel, "", true},
		{StatusCancelled, eventActivate, "", true},
		{StatusCancelled, eventCancel, "", true},
		{StatusCancelled, eventWithdraw, "", true},
	}
	for _, tt := range statusTests {
		got, err := transitionStatus(ctx, tt.from, tt.event, tt.event)
		if (err != nil) != tt.wantErr {
			t.Errorf("transitionStatus(%s, %s) error = %v, wantErr %v", tt.from, tt.event, err, tt.wantErr)
			continue
		}
		if tt.wantErr && !core.IsInvalidState(err) {
			t.Errorf("transitionStatus(%s, %s) error = %v, want an invalid state error", tt.from, tt.event, err)
		}
		if !tt.wantErr && got != tt.want {
			t.Errorf("transitionStatus(%s, %s) = %s, want %s", tt.from, tt.event, got, tt.want)
		}
	}
}

func TestSeatPredicate_Counts(t *testing.T) {
	e := func(status Status, request RequestStatus, active bool) Enrollment {
		return Enrollment{Status: status, RequestStatus: request, Active: active}
	}

	tests := []struct {
		name                          string
		e                             Enrollment
		request, approval, activation bool
	}{
		{name: "requested", e: e(StatusPending, RequestPending, true)},
		{name: "approved", e: e(StatusPending, RequestEnrolled, true), request: true, approval: true},
		{name: "awaiting payment", e: e(StatusApproved, RequestPending, true), request: true},
		{name: "active", e: e(StatusActive, RequestEnrolled, true), request: true, approval: true, activation: true},
		{name: "active without approval", e: e(StatusActive, RequestPending, true), request: true, activation: true},
		{name: "rejected", e: e(StatusPending, RequestRejected, true)},
		{name: "cancelled", e: e(StatusCancelled, RequestEnrolled, true)},
		{name: "soft-deleted", e: e(StatusActive, RequestEnrolled, false)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SeatsForRequest.Counts(tt.e); got != tt.request {
				t.Errorf("SeatsForRequest.Counts() = %v, want %v", got, tt.request)
			}
			if got := SeatsForApproval.Counts(tt.e); got != tt.approval {
				t.Errorf("SeatsForApproval.Counts() = %v, want %v", got, tt.approval)
			}
			if got := SeatsForActivation.Counts(tt.e); got != tt.activation {
				t.Errorf("SeatsForActivation.Counts() = %v, want %v", got, tt.activation)
			}
		})
	}
}
