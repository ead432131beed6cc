package payment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusExpired   Status = "expired"
)

// Payment is a simulated QR payment for an enrollment ("pago_qr"). Amount is in cents.
type Payment struct {
	ID              int        `json:"id"`
	EnrollmentID    int        `json:"enrollment_id"`
	Amount          int64      `json:"amount"`
	Status          Status     `json:"status"`
	TransactionCode string     `json:"transaction_code"`
	ExpiresAt       time.Time  `json:"expires_at"`
	PaidAt          *time.Time `json:"paid_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Live reports whether p still blocks a new payment for its enrollment at now.
func (p Payment) Live(now time.Time) bool {
	switch p.Status {
	case StatusCompleted:
		return true
	case StatusPending:
		return now.Before(p.ExpiresAt)
	}
	return false
}

func (p Payment) Expired(now time.Time) bool {
	return p.Status == StatusExpired || (p.Status == StatusPending && !now.Before(p.ExpiresAt))
}

func newTransactionCode() string {
	return "QR-" + uuid.New().String()
}

type QueryFilter struct {
	EnrollmentID int
	Statuses     []Status
}

func (qf QueryFilter) Matches(p Payment) bool {
	if qf.EnrollmentID != 0 && p.EnrollmentID != qf.EnrollmentID {
		return false
	}
	if len(qf.Statuses) == 0 {
		return true
	}
	for _, s := range qf.Statuses {
		if p.Status == s {
			return true
		}
	}
	return false
}
