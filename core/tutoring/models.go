package tutoring

import (
	"fmt"

	"github.com/trezcool/tutorias/core"
)

type Institution struct {
	ID        int    `json:"id" db:"id"`
	Name      string `json:"name" db:"name"`
	ManagerID string `json:"manager_id" db:"manager_id"` // user.User ID
	Active    bool   `json:"active" db:"active"`
}

type Room struct {
	ID            int    `json:"id" db:"id"`
	InstitutionID int    `json:"institution_id" db:"institution_id"`
	Name          string `json:"name" db:"name"`
	Capacity      int    `json:"capacity" db:"capacity"`
	Active        bool   `json:"active" db:"active"`
}

type Tutor struct {
	ID     int    `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Active bool   `json:"active" db:"active"`
}

type Student struct {
	ID     int    `json:"id" db:"id"`
	UserID string `json:"user_id" db:"user_id"`
	Name   string `json:"name" db:"name"`
	Email  string `json:"email" db:"email"`
	Active bool   `json:"active" db:"active"`
}

// Session is a tutoring session ("tutoria"). Capacity is the seat limit ("cupo").
type Session struct {
	ID            int    `json:"id" db:"id"`
	Sigla         string `json:"sigla" db:"sigla"`
	Name          string `json:"name" db:"name"`
	Capacity      int    `json:"capacity" db:"capacity"`
	InstitutionID int    `json:"institution_id" db:"institution_id"`
	TutorID       int    `json:"tutor_id" db:"tutor_id"`
	Price         int64  `json:"price" db:"price"` // cents
	Active        bool   `json:"active" db:"active"`
}

// Owner lists the users allowed to act on a Session besides admins.
type Owner struct {
	SessionID     int
	TutorUserID   string
	ManagerUserID string
}

// Permits reports whether actor owns the session:
// admins always do, tutors when they teach it, managers when they run its institution.
func (o Owner) Permits(actor core.Actor) bool {
	switch actor.Role {
	case core.RoleAdmin:
		return true
	case core.RoleTutor:
		return actor.UserID != "" && actor.UserID == o.TutorUserID
	case core.RoleInstitutionManager:
		return actor.UserID != "" && actor.UserID == o.ManagerUserID
	default:
		return false
	}
}

type RoomFilter struct {
	InstitutionID int
	ActiveOnly    bool
}

// FormatPrice renders a price in cents, e.g. 15050 as "150.50".
func FormatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign, cents = "-", -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
