package dummydb

import (
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
)

// The Add* helpers write rows as-is, bypassing every service guard. Zero ids are assigned.

func (db *DB) AddInstitution(inst tutoring.Institution) tutoring.Institution {
	if inst.ID == 0 {
		inst.ID = db.nextID("institution")
	}
	db.newRepo(false).institutions.put(inst.ID, inst)
	return inst
}

func (db *DB) AddRoom(room tutoring.Room) tutoring.Room {
	if room.ID == 0 {
		room.ID = db.nextID("room")
	}
	db.newRepo(false).rooms.put(room.ID, room)
	return room
}

func (db *DB) AddTutor(tutor tutoring.Tutor) tutoring.Tutor {
	if tutor.ID == 0 {
		tutor.ID = db.nextID("tutor")
	}
	db.newRepo(false).tutors.put(tutor.ID, tutor)
	return tutor
}

func (db *DB) AddStudent(std tutoring.Student) tutoring.Student {
	if std.ID == 0 {
		std.ID = db.nextID("student")
	}
	db.newRepo(false).students.put(std.ID, std)
	return std
}

func (db *DB) AddSession(sess tutoring.Session) tutoring.Session {
	if sess.ID == 0 {
		sess.ID = db.nextID("tutoring_session")
	}
	db.newRepo(false).sessions.put(sess.ID, sess)
	return sess
}

func (db *DB) AddAssignment(a schedule.Assignment) schedule.Assignment {
	db.newRepo(false).assignments.put(a.Key(), a)
	return a
}

func (db *DB) AddEnrollment(e enrollment.Enrollment) enrollment.Enrollment {
	if e.ID == 0 {
		e.ID = db.nextID("enrollment")
	}
	db.newRepo(false).enrollments.put(e.ID, e)
	return e
}

func (db *DB) AddPayment(p payment.Payment) payment.Payment {
	if p.ID == 0 {
		p.ID = db.nextID("payment")
	}
	db.newRepo(false).payments.put(p.TransactionCode, p)
	return p
}
