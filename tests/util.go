package testutil

import (
	"context"
	"io"
	"log"
	"testing"
	"time"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
	"github.com/trezcool/tutorias/core/user"
	"github.com/trezcool/tutorias/services/email"
	"github.com/trezcool/tutorias/services/logger"
	"github.com/trezcool/tutorias/storage/database/dummy"
)

// Fixture wires every service on a fresh in-memory DB seeded with one institution:
// two rooms, two tutors, three students and one tutoring session (capacity 2) taught by Tutor.
type Fixture struct {
	Conf   *core.Config
	Logger core.Logger
	Mail   *emailsvc.ConsoleServiceMock
	DB     *dummydb.DB

	UserRepo      user.Repository
	UserSvc       *user.Service
	ScheduleSvc   *schedule.Service
	EnrollmentSvc *enrollment.Service
	PaymentSvc    *payment.Service

	Admin, Manager, TutorUser, OtherTutorUser user.User
	StudentUsers                              []user.User

	Institution tutoring.Institution
	Room        tutoring.Room
	OtherRoom   tutoring.Room
	Tutor       tutoring.Tutor
	OtherTutor  tutoring.Tutor
	Students    []tutoring.Student
	Session     tutoring.Session
}

func NewLogger(conf *core.Config) core.Logger {
	return logsvc.NewRollbarLogger(log.New(io.Discard, "", 0), conf)
}

func NewFixture(t *testing.T) *Fixture {
	t.Helper()

	conf := core.NewTestConfig()
	logger := NewLogger(conf)
	core.ParseEmailTemplates(conf, logger)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open(): %v", err)
	}

	f := &Fixture{
		Conf:     conf,
		Logger:   logger,
		Mail:     emailsvc.NewConsoleServiceMock(conf, logger),
		DB:       db,
		UserRepo: dummydb.NewUserRepository(db),
	}
	f.UserSvc = user.NewService(f.UserRepo)
	catalog := tutoring.NewCatalog(dummydb.NewTutoringRepository(db), conf)
	f.ScheduleSvc = schedule.NewService(dummydb.NewScheduleStore(db), catalog, conf, logger)
	f.EnrollmentSvc = enrollment.NewService(dummydb.NewEnrollmentStore(db), f.Mail, logger)
	f.PaymentSvc = payment.NewService(dummydb.NewPaymentStore(db), f.EnrollmentSvc, conf, logger)

	f.Admin = CreateUser(t, f.UserRepo, "Admin", "admin", "admin@example.com", "", core.RoleAdmin, true)
	f.Manager = CreateUser(t, f.UserRepo, "Manager", "manager", "manager@example.com", "", core.RoleInstitutionManager, true)
	f.TutorUser = CreateUser(t, f.UserRepo, "Tutor", "tutor", "tutor@example.com", "", core.RoleTutor, true)
	f.OtherTutorUser = CreateUser(t, f.UserRepo, "Other Tutor", "tutor2", "tutor2@example.com", "", core.RoleTutor, true)

	f.Institution = db.AddInstitution(tutoring.Institution{Name: "Instituto Central", ManagerID: f.Manager.ID, Active: true})
	f.Room = db.AddRoom(tutoring.Room{InstitutionID: f.Institution.ID, Name: "A-101", Capacity: 30, Active: true})
	f.OtherRoom = db.AddRoom(tutoring.Room{InstitutionID: f.Institution.ID, Name: "A-102", Capacity: 20, Active: true})
	f.Tutor = db.AddTutor(tutoring.Tutor{UserID: f.TutorUser.ID, Name: f.TutorUser.Name, Active: true})
	f.OtherTutor = db.AddTutor(tutoring.Tutor{UserID: f.OtherTutorUser.ID, Name: f.OtherTutorUser.Name, Active: true})

	for _, uname := range []string{"ana", "beto", "carla"} {
		usr := CreateUser(t, f.UserRepo, uname, uname, uname+"@example.com", "", core.RoleStudent, true)
		f.StudentUsers = append(f.StudentUsers, usr)
		f.Students = append(f.Students, db.AddStudent(tutoring.Student{UserID: usr.ID, Name: usr.Name, Email: usr.Email, Active: true}))
	}

	f.Session = f.AddSession(t, "MAT101", 2)
	return f
}

// AddSession adds an active tutoring session of the fixture institution taught by Tutor.
func (f *Fixture) AddSession(t *testing.T, sigla string, capacity int) tutoring.Session {
	t.Helper()
	return f.DB.AddSession(tutoring.Session{
		Sigla:         sigla,
		Name:          "Tutoring " + sigla,
		Capacity:      capacity,
		InstitutionID: f.Institution.ID,
		TutorID:       f.Tutor.ID,
		Price:         15000,
		Active:        true,
	})
}

// AddEnrollment adds a live enrollment in the given state axes, bypassing the service guards.
func (f *Fixture) AddEnrollment(t *testing.T, std tutoring.Student, sess tutoring.Session, status enrollment.Status, request enrollment.RequestStatus) enrollment.Enrollment {
	t.Helper()
	now := time.Now().UTC()
	return f.DB.AddEnrollment(enrollment.Enrollment{
		StudentID:     std.ID,
		SessionID:     sess.ID,
		EnrolledAt:    now,
		Status:        status,
		RequestStatus: request,
		Active:        true,
		UpdatedAt:     now,
	})
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, uname, email, pwd string,
	role core.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()

	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Name:      name,
		Username:  uname,
		Email:     email,
		Role:      role,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("createUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("createUser() failed: %v", err)
	}
	return usr
}
