package sqlxrepos_test

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
	"github.com/trezcool/tutorias/core/user"
	"github.com/trezcool/tutorias/storage/database"
	sqlxrepos "github.com/trezcool/tutorias/storage/database/sqlx"
	"github.com/trezcool/tutorias/tests"
)

type pgFixture struct {
	sqlDB   *sql.DB
	db      *sqlxrepos.DB
	admin   user.User
	tutor   tutoring.Tutor
	room    tutoring.Room
	session tutoring.Session
	stds    []tutoring.Student
}

// openDB connects to TEST_DATABASE_URL and resets the schema; tests are skipped without it.
func openDB(t *testing.T) *pgFixture {
	t.Helper()

	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL is not set")
	}
	sqlDB, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("sql.Open(): %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err = database.Ping(ctx, sqlDB); err != nil {
		t.Fatalf("database.Ping(): %v", err)
	}
	if err = database.Run(sqlDB, "reset"); err != nil {
		t.Fatalf("database.Run(reset): %v", err)
	}
	if err = database.Migrate(sqlDB); err != nil {
		t.Fatalf("database.Migrate(): %v", err)
	}

	f := &pgFixture{sqlDB: sqlDB, db: sqlxrepos.NewDB(sqlDB)}
	users := sqlxrepos.NewUserRepository(f.db)
	f.admin = testutil.CreateUser(t, users, "Admin", "admin", "admin@example.com", "", core.RoleAdmin, true)
	tutorUser := testutil.CreateUser(t, users, "Tutor", "tutor", "tutor@example.com", "", core.RoleTutor, true)

	var instID int
	f.mustScan(t, &instID, `INSERT INTO institution (name) VALUES ('Instituto Central') RETURNING id`)
	f.room = tutoring.Room{InstitutionID: instID, Name: "A-101", Capacity: 30, Active: true}
	f.mustScan(t, &f.room.ID, `INSERT INTO room (institution_id, name, capacity) VALUES ($1, 'A-101', 30) RETURNING id`, instID)
	f.tutor = tutoring.Tutor{UserID: tutorUser.ID, Name: "Tutor", Active: true}
	f.mustScan(t, &f.tutor.ID, `INSERT INTO tutor (user_id, name) VALUES ($1, 'Tutor') RETURNING id`, tutorUser.ID)
	f.session = tutoring.Session{Sigla: "MAT101", Name: "Calculus", Capacity: 1, InstitutionID: instID, TutorID: f.tutor.ID, Price: 15000, Active: true}
	f.mustScan(t, &f.session.ID,
		`INSERT INTO tutoring_session (sigla, name, capacity, institution_id, tutor_id, price) VALUES ('MAT101', 'Calculus', 1, $1, $2, 15000) RETURNING id`,
		instID, f.tutor.ID)

	for _, name := range []string{"ana", "beto", "carla"} {
		std := tutoring.Student{Name: name, Email: name + "@example.com", Active: true}
		f.mustScan(t, &std.ID, `INSERT INTO student (name, email) VALUES ($1, $2) RETURNING id`, std.Name, std.Email)
		f.stds = append(f.stds, std)
	}
	return f
}

func (f *pgFixture) mustScan(t *testing.T, dest interface{}, query string, args ...interface{}) {
	t.Helper()
	if err := f.sqlDB.QueryRow(query, args...).Scan(dest); err != nil {
		t.Fatalf("%s: %v", query, err)
	}
}

func TestScheduleStore(t *testing.T) {
	f := openDB(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	catalog := tutoring.NewCatalog(sqlxrepos.NewTutoringRepository(f.db), conf)
	svc := schedule.NewService(sqlxrepos.NewScheduleStore(f.db), catalog, conf, logger)
	admin := f.admin.Actor()

	a, err := svc.CreateAssignment(ctx, admin, schedule.NewAssignment{
		RoomID: f.room.ID, SessionID: f.session.ID, TutorID: f.tutor.ID,
		Day: time.Monday, Start: schedule.MustParseClock("10:00"), End: schedule.MustParseClock("12:00"),
	})
	if err != nil {
		t.Fatalf("CreateAssignment() unexpected error = %v", err)
	}
	assert.True(t, a.Active)

	avail, err := svc.CheckAvailability(ctx, schedule.AvailabilityQuery{
		RoomID: f.room.ID, Day: time.Monday,
		Interval: schedule.Interval{Start: schedule.MustParseClock("10:30"), End: schedule.MustParseClock("11:30")},
	})
	if err != nil {
		t.Fatalf("CheckAvailability() unexpected error = %v", err)
	}
	if assert.Len(t, avail.Conflicts, 1) {
		assert.Equal(t, a.Key(), avail.Conflicts[0].Key())
		assert.Equal(t, a.Start, avail.Conflicts[0].Start)
	}

	slots, err := svc.ListFreeSlots(ctx, f.room.ID, time.Monday)
	if err != nil {
		t.Fatalf("ListFreeSlots() unexpected error = %v", err)
	}
	assert.Len(t, slots, 13)

	end := schedule.MustParseClock("13:00")
	upd, err := svc.UpdateAssignment(ctx, admin, schedule.UpdateAssignment{Key: a.Key(), End: &end})
	if err != nil {
		t.Fatalf("UpdateAssignment() unexpected error = %v", err)
	}
	assert.Equal(t, end, upd.End)

	if _, err = svc.DeactivateAssignment(ctx, admin, a.Key()); err != nil {
		t.Fatalf("DeactivateAssignment() unexpected error = %v", err)
	}
	if _, err = svc.DeactivateAssignment(ctx, admin, a.Key()); !core.IsNotFound(err) {
		t.Errorf("second DeactivateAssignment() error = %v, want not found", err)
	}
}

func TestEnrollmentStore_lastSeat(t *testing.T) {
	f := openDB(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	svc := enrollment.NewService(sqlxrepos.NewEnrollmentStore(f.db), nil, testutil.NewLogger(conf))
	admin := f.admin.Actor()

	ids := make([]int, 0, len(f.stds))
	for _, std := range f.stds {
		e, err := svc.RequestEnrollment(ctx, admin, enrollment.NewEnrollment{StudentID: std.ID, SessionID: f.session.ID})
		if err != nil {
			t.Fatalf("RequestEnrollment() unexpected error = %v", err)
		}
		ids = append(ids, e.ID)
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		approved int
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			_, err := svc.Approve(ctx, admin, id)
			if err != nil && !core.IsCapacityExceeded(err) {
				t.Errorf("Approve() unexpected error = %v", err)
				return
			}
			if err == nil {
				mu.Lock()
				approved++
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	assert.Equal(t, 1, approved)

	seats, err := svc.Seats(ctx, f.session.ID)
	if err != nil {
		t.Fatalf("Seats() unexpected error = %v", err)
	}
	assert.Equal(t, 1, seats.Approved)
	assert.Equal(t, 0, seats.Available)
}

func TestPaymentStore(t *testing.T) {
	f := openDB(t)
	ctx := context.Background()
	conf := core.NewTestConfig()
	logger := testutil.NewLogger(conf)
	enrollmentSvc := enrollment.NewService(sqlxrepos.NewEnrollmentStore(f.db), nil, logger)
	paymentSvc := payment.NewService(sqlxrepos.NewPaymentStore(f.db), enrollmentSvc, conf, logger)
	admin := f.admin.Actor()

	e, err := enrollmentSvc.RequestEnrollment(ctx, admin, enrollment.NewEnrollment{StudentID: f.stds[0].ID, SessionID: f.session.ID})
	if err != nil {
		t.Fatalf("RequestEnrollment() unexpected error = %v", err)
	}
	p, err := paymentSvc.Generate(ctx, admin, e.ID)
	if err != nil {
		t.Fatalf("Generate() unexpected error = %v", err)
	}
	assert.Equal(t, f.session.Price, p.Amount)

	paid, activated, err := paymentSvc.Complete(ctx, p.TransactionCode)
	if err != nil {
		t.Fatalf("Complete() unexpected error = %v", err)
	}
	assert.Equal(t, payment.StatusCompleted, paid.Status)
	assert.Equal(t, enrollment.StateActive, activated.State())

	if _, err = enrollmentSvc.Cancel(ctx, admin, e.ID, ""); !core.IsConflict(err) {
		t.Errorf("Cancel() error = %v, want a payment conflict", err)
	}

	n, err := paymentSvc.ExpireStale(ctx)
	if err != nil {
		t.Fatalf("ExpireStale() unexpected error = %v", err)
	}
	assert.Equal(t, 0, n)
}
