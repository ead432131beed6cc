package enrollment

import (
	"encoding/json"
	"time"

	"github.com/trezcool/tutorias/core"
)

// Status is the operational axis ("estado_inscripcion").
type Status string

const (
	StatusPending   Status = "pendiente"
	StatusApproved  Status = "aprobada" // legacy: no longer written, still read
	StatusActive    Status = "activa"
	StatusCancelled Status = "cancelada"
)

// RequestStatus is the approval axis ("estado_solicitud").
type RequestStatus string

const (
	RequestPending  RequestStatus = "pendiente"
	RequestEnrolled RequestStatus = "inscrito"
	RequestRejected RequestStatus = "rechazado"
)

// State is the combined lifecycle state derived from both axes.
type State string

const (
	StateRequested       State = "requested"
	StateApproved        State = "approved"
	StateRejected        State = "rejected"
	StateAwaitingPayment State = "awaiting_payment"
	StateActive          State = "active"
	StateCancelled       State = "cancelled"
)

// StateOf maps the stored pair of axes (plus the soft-delete flag) to the combined state:
//
//	active=false or status=cancelada        -> cancelled
//	request_status=rechazado                -> rejected
//	status=activa                           -> active
//	status=aprobada                         -> awaiting_payment
//	status=pendiente, request=inscrito      -> approved
//	status=pendiente, request=pendiente     -> requested
func StateOf(status Status, request RequestStatus, active bool) State {
	switch {
	case !active || status == StatusCancelled:
		return StateCancelled
	case request == RequestRejected:
		return StateRejected
	case status == StatusActive:
		return StateActive
	case status == StatusApproved:
		return StateAwaitingPayment
	case request == RequestEnrolled:
		return StateApproved
	default:
		return StateRequested
	}
}

// Enrollment is a student's request to join a tutoring session ("inscripcion").
type Enrollment struct {
	ID            int           `json:"id"`
	StudentID     int           `json:"student_id"`
	SessionID     int           `json:"session_id"`
	EnrolledAt    time.Time     `json:"enrolled_at"`
	Status        Status        `json:"status"`
	RequestStatus RequestStatus `json:"request_status"`
	ApproverID    string        `json:"approver_id,omitempty"`
	ApprovedAt    *time.Time    `json:"approved_at,omitempty"`
	RejectedAt    *time.Time    `json:"rejected_at,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Active        bool          `json:"active"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func (e Enrollment) State() State {
	return StateOf(e.Status, e.RequestStatus, e.Active)
}

// live reports whether e still takes part in duplicate and seat checks.
func (e Enrollment) live() bool {
	return e.Active && e.Status != StatusCancelled && e.RequestStatus != RequestRejected
}

func (e Enrollment) MarshalJSON() ([]byte, error) {
	type alias Enrollment
	return json.Marshal(struct {
		alias
		State State `json:"state"`
	}{alias(e), e.State()})
}

// NewEnrollment contains information needed to request an Enrollment.
// StudentID may be omitted by student actors: their own record is used.
type NewEnrollment struct {
	StudentID int `json:"student_id" validate:"omitempty,min=1"`
	SessionID int `json:"session_id" validate:"required,min=1"`
}

func (ne NewEnrollment) Validate() error {
	return core.CheckStruct(ne)
}

type QueryFilter struct {
	SessionID       int             `query:"session"`
	StudentID       int             `query:"student"`
	Statuses        []Status        `query:"status"`
	RequestStatuses []RequestStatus `query:"request_status"`
	ActiveOnly      bool            `query:"active"`
	Ordering        []core.DBOrdering
}

// OrderingFields lists the fields QueryFilter.Ordering may use.
var OrderingFields = []string{"id", "enrolled_at", "updated_at", "status", "request_status"}

// Matches reports whether e satisfies the filter (ordering aside).
func (qf QueryFilter) Matches(e Enrollment) bool {
	if qf.SessionID != 0 && e.SessionID != qf.SessionID {
		return false
	}
	if qf.StudentID != 0 && e.StudentID != qf.StudentID {
		return false
	}
	if qf.ActiveOnly && !e.Active {
		return false
	}
	if len(qf.Statuses) > 0 {
		found := false
		for _, s := range qf.Statuses {
			if e.Status == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(qf.RequestStatuses) > 0 {
		found := false
		for _, s := range qf.RequestStatuses {
			if e.RequestStatus == s {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// SeatSummary reports the occupancy of a tutoring session under each seat predicate.
type SeatSummary struct {
	SessionID int `json:"session_id"`
	Capacity  int `json:"capacity"`
	Requested int `json:"requested"`
	Approved  int `json:"approved"`
	Activated int `json:"activated"`
	Available int `json:"available"`
}
