package enrollment

import (
	"context"

	"github.com/looplab/fsm"
	"github.com/pkg/errors"

	"github.com/trezcool/tutorias/core"
)

const (
	eventApprove  = "approve"
	eventReject   = "reject"
	eventActivate = "activate"
	eventCancel   = "cancel"
	eventWithdraw = "withdraw"
)

// requestTransitions drives the approval axis.
var requestTransitions = fsm.Events{
	{Name: eventApprove, Src: []string{string(RequestPending)}, Dst: string(RequestEnrolled)},
	{Name: eventReject, Src: []string{string(RequestPending)}, Dst: string(RequestRejected)},
}

// statusTransitions drives the operational axis. "aprobada" is only ever a source.
var statusTransitions = fsm.Events{
	{Name: eventActivate, Src: []string{string(StatusPending), string(StatusApproved)}, Dst: string(StatusActive)},
	{Name: eventCancel, Src: []string{string(StatusPending)}, Dst: string(StatusCancelled)},
	{Name: eventWithdraw, Src: []string{string(StatusPending)}, Dst: string(StatusCancelled)},
}

// transition fires event from current and returns the destination state,
// or an InvalidStateError when current does not allow it.
func transition(ctx context.Context, events fsm.Events, current, event, action string) (string, error) {
	machine := fsm.NewFSM(current, events, fsm.Callbacks{})
	if machine.Cannot(event) {
		return "", core.NewInvalidStateError(action, current)
	}
	if err := machine.Event(ctx, event); err != nil {
		return "", errors.Wrapf(err, "%s", action)
	}
	return machine.Current(), nil
}

func transitionRequest(ctx context.Context, current RequestStatus, event, action string) (RequestStatus, error) {
	dst, err := transition(ctx, requestTransitions, string(current), event, action)
	return RequestStatus(dst), err
}

func transitionStatus(ctx context.Context, current Status, event, action string) (Status, error) {
	dst, err := transition(ctx, statusTransitions, string(current), event, action)
	return Status(dst), err
}
