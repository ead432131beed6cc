package enrollment

// SeatPredicate names the rule deciding which enrollments occupy a seat of a tutoring session.
// Each guarded operation counts seats with its own predicate.
type SeatPredicate string

const (
	// SeatsForRequest guards new requests: approved or paid enrollments hold a seat.
	SeatsForRequest SeatPredicate = "request"
	// SeatsForApproval guards approvals: only approved requests hold a seat.
	SeatsForApproval SeatPredicate = "approval"
	// SeatsForActivation guards payments: only active enrollments hold a seat.
	SeatsForActivation SeatPredicate = "activation"
)

// Counts reports whether e occupies a seat under p.
func (p SeatPredicate) Counts(e Enrollment) bool {
	if !e.live() {
		return false
	}
	switch p {
	case SeatsForRequest:
		return e.RequestStatus == RequestEnrolled || e.Status == StatusApproved || e.Status == StatusActive
	case SeatsForApproval:
		return e.RequestStatus == RequestEnrolled
	case SeatsForActivation:
		return e.Status == StatusActive
	}
	return false
}

// SQL is the WHERE condition matching the enrollments that occupy a seat under p.
// It expects the enrollment columns unqualified.
func (p SeatPredicate) SQL() string {
	const live = "active AND status <> 'cancelada' AND request_status <> 'rechazado'"
	switch p {
	case SeatsForRequest:
		return live + " AND (request_status = 'inscrito' OR status IN ('aprobada', 'activa'))"
	case SeatsForApproval:
		return live + " AND request_status = 'inscrito'"
	case SeatsForActivation:
		return live + " AND status = 'activa'"
	}
	return "FALSE"
}
