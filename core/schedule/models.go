package schedule

import (
	"time"

	"github.com/trezcool/tutorias/core"
)

// AssignmentKey is the composite identity of an Assignment.
type AssignmentKey struct {
	RoomID    int `json:"room_id" query:"room_id" validate:"required,min=1"`
	SessionID int `json:"session_id" query:"session_id" validate:"required,min=1"`
	TutorID   int `json:"tutor_id" query:"tutor_id" validate:"required,min=1"`
}

func (k AssignmentKey) Validate() error {
	return core.CheckStruct(k)
}

// Assignment books a room and a tutor for a tutoring session on a weekday ("asigna").
type Assignment struct {
	RoomID    int          `json:"room_id" db:"room_id"`
	SessionID int          `json:"session_id" db:"session_id"`
	TutorID   int          `json:"tutor_id" db:"tutor_id"`
	Day       time.Weekday `json:"day" db:"day"`
	Start     ClockTime    `json:"start" db:"start_time"`
	End       ClockTime    `json:"end" db:"end_time"`
	Active    bool         `json:"active" db:"active"`
	CreatedAt time.Time    `json:"created_at" db:"created_at"`
	UpdatedAt time.Time    `json:"updated_at" db:"updated_at"`
}

func (a Assignment) Key() AssignmentKey {
	return AssignmentKey{RoomID: a.RoomID, SessionID: a.SessionID, TutorID: a.TutorID}
}

func (a Assignment) Interval() Interval {
	return Interval{Start: a.Start, End: a.End}
}

// LockKeys names the room/day and tutor/day resources a write to a must serialize on.
func (a Assignment) LockKeys() []core.LockKey {
	return []core.LockKey{core.RoomDayKey(a.RoomID, a.Day), core.TutorDayKey(a.TutorID, a.Day)}
}

// NewAssignment contains information needed to create an Assignment.
type NewAssignment struct {
	RoomID    int          `json:"room_id" validate:"required,min=1"`
	SessionID int          `json:"session_id" validate:"required,min=1"`
	TutorID   int          `json:"tutor_id" validate:"required,min=1"`
	Day       time.Weekday `json:"day" validate:"min=0,max=6"`
	Start     ClockTime    `json:"start"`
	End       ClockTime    `json:"end"`
}

func (na NewAssignment) Validate() error {
	if err := core.CheckStruct(na); err != nil {
		return err
	}
	return validateInterval(Interval{Start: na.Start, End: na.End})
}

func (na NewAssignment) assignment() Assignment {
	return Assignment{
		RoomID:    na.RoomID,
		SessionID: na.SessionID,
		TutorID:   na.TutorID,
		Day:       na.Day,
		Start:     na.Start,
		End:       na.End,
		Active:    true,
	}
}

// UpdateAssignment defines what may change on an existing Assignment; nil fields are kept.
type UpdateAssignment struct {
	Key    AssignmentKey `json:"key"`
	RoomID *int          `json:"room_id" validate:"omitempty,min=1"`
	Day    *time.Weekday `json:"day" validate:"omitempty,min=0,max=6"`
	Start  *ClockTime    `json:"start"`
	End    *ClockTime    `json:"end"`
}

func (ua UpdateAssignment) Validate() error {
	return core.CheckStruct(ua)
}

// apply returns orig with the requested changes.
func (ua UpdateAssignment) apply(orig Assignment) Assignment {
	upd := orig
	if ua.RoomID != nil {
		upd.RoomID = *ua.RoomID
	}
	if ua.Day != nil {
		upd.Day = *ua.Day
	}
	if ua.Start != nil {
		upd.Start = *ua.Start
	}
	if ua.End != nil {
		upd.End = *ua.End
	}
	return upd
}

// AvailabilityQuery asks whether a room (or a tutor) is free on Day during Interval.
// Exclude skips the assignment being edited.
type AvailabilityQuery struct {
	RoomID   int            `json:"room_id"`
	TutorID  int            `json:"tutor_id"`
	Day      time.Weekday   `json:"day"`
	Interval Interval       `json:"interval"`
	Exclude  *AssignmentKey `json:"exclude,omitempty"`
}

type Availability struct {
	Available bool         `json:"available"`
	Conflicts []Assignment `json:"conflicts"`
}

// QueryFilter applies AND on its set fields.
type QueryFilter struct {
	RoomID      int
	TutorID     int
	SessionID   int
	Day         *time.Weekday
	ActiveOnly  bool
	Overlapping *Interval      // assignments whose interval overlaps this one
	Exclude     *AssignmentKey // never returned
}

// Matches reports whether a satisfies the filter.
func (qf QueryFilter) Matches(a Assignment) bool {
	if qf.RoomID != 0 && a.RoomID != qf.RoomID {
		return false
	}
	if qf.TutorID != 0 && a.TutorID != qf.TutorID {
		return false
	}
	if qf.SessionID != 0 && a.SessionID != qf.SessionID {
		return false
	}
	if qf.Day != nil && a.Day != *qf.Day {
		return false
	}
	if qf.ActiveOnly && !a.Active {
		return false
	}
	if qf.Overlapping != nil && !a.Interval().Overlaps(*qf.Overlapping) {
		return false
	}
	if qf.Exclude != nil && a.Key() == *qf.Exclude {
		return false
	}
	return true
}

func validateInterval(iv Interval) error {
	var flds []core.FieldError
	if !iv.Start.Valid() {
		flds = append(flds, core.FieldError{Field: "start", Error: "invalid time of day"})
	}
	if !iv.End.Valid() {
		flds = append(flds, core.FieldError{Field: "end", Error: "invalid time of day"})
	}
	if flds == nil && iv.Start >= iv.End {
		flds = append(flds, core.FieldError{Field: "end", Error: "end must be after start"})
	}
	if flds != nil {
		return core.NewValidationError(nil, flds...)
	}
	return nil
}

func validateDay(day time.Weekday) error {
	if day < time.Sunday || day > time.Saturday {
		return core.NewValidationError(nil, core.FieldError{Field: "day", Error: "day must be between 0 (Sunday) and 6 (Saturday)"})
	}
	return nil
}
