package dummydb

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
)

func TestDB_atomic(t *testing.T) {
	db, _ := Open()
	ctx := context.Background()
	store := NewEnrollmentStore(db)
	sess := db.AddSession(tutoring.Session{Sigla: "MAT101", Capacity: 2, Active: true})
	keys := []core.LockKey{core.SessionKey(sess.ID)}
	errBoom := errors.New("boom")

	t.Run("rollback", func(t *testing.T) {
		err := store.Atomic(ctx, keys, func(repo enrollment.Repository) error {
			e, err := repo.CreateEnrollment(ctx, enrollment.Enrollment{SessionID: sess.ID, StudentID: 1, Active: true})
			if err != nil {
				return err
			}
			// visible inside the unit
			if _, err = repo.GetEnrollment(ctx, e.ID); err != nil {
				return err
			}
			if _, err = repo.UpdateSessionCapacity(ctx, sess.ID, 10); err != nil {
				return err
			}
			return errBoom
		})
		if err != errBoom {
			t.Fatalf("Atomic() error = %v, want %v", err, errBoom)
		}

		got, _ := store.QueryEnrollments(ctx, enrollment.QueryFilter{SessionID: sess.ID})
		assert.Empty(t, got)
		stored, _ := store.GetSession(ctx, sess.ID)
		assert.Equal(t, 2, stored.Capacity)
	})

	t.Run("commit", func(t *testing.T) {
		var created enrollment.Enrollment
		err := store.Atomic(ctx, keys, func(repo enrollment.Repository) error {
			var err error
			created, err = repo.CreateEnrollment(ctx, enrollment.Enrollment{SessionID: sess.ID, StudentID: 1, Active: true})
			return err
		})
		if err != nil {
			t.Fatalf("Atomic() unexpected error = %v", err)
		}
		// ids are not reused after a rollback
		assert.Equal(t, 2, created.ID)
		got, err := store.GetEnrollment(ctx, created.ID)
		if err != nil {
			t.Fatalf("GetEnrollment() unexpected error = %v", err)
		}
		assert.Equal(t, created, got)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		err := store.Atomic(cctx, keys, func(repo enrollment.Repository) error {
			cancel()
			_, err := repo.CreateEnrollment(cctx, enrollment.Enrollment{SessionID: sess.ID, StudentID: 2, Active: true})
			return err
		})
		if !core.IsStorage(err) {
			t.Fatalf("Atomic() error = %v, want a storage error", err)
		}
		got, _ := store.QueryEnrollments(ctx, enrollment.QueryFilter{StudentID: 2})
		assert.Empty(t, got)
	})

	t.Run("lock timeout", func(t *testing.T) {
		release, err := db.locker.Lock(ctx, keys...)
		if err != nil {
			t.Fatalf("Lock() unexpected error = %v", err)
		}
		defer release()

		tctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		err = store.Atomic(tctx, keys, func(enrollment.Repository) error { return nil })
		if !core.IsStorage(err) {
			t.Errorf("Atomic() error = %v, want a storage error", err)
		}
	})
}

func TestRepo_UpdateAssignment_moveKey(t *testing.T) {
	db, _ := Open()
	ctx := context.Background()
	store := NewScheduleStore(db)

	a := db.AddAssignment(schedule.Assignment{
		RoomID: 1, SessionID: 1, TutorID: 1, Day: time.Monday,
		Start: schedule.NewClockTime(8, 0), End: schedule.NewClockTime(9, 0), Active: true,
	})
	oldKey := a.Key()
	moved := a
	moved.RoomID = 2

	err := store.Atomic(ctx, moved.LockKeys(), func(repo schedule.Repository) error {
		_, err := repo.UpdateAssignment(ctx, oldKey, moved)
		return err
	})
	if err != nil {
		t.Fatalf("Atomic() unexpected error = %v", err)
	}

	if _, err = store.GetAssignment(ctx, oldKey); !errors.Is(err, schedule.ErrAssignmentNotFound) {
		t.Errorf("GetAssignment(old key) error = %v, want not found", err)
	}
	got, err := store.QueryAssignments(ctx, schedule.QueryFilter{})
	if err != nil {
		t.Fatalf("QueryAssignments() unexpected error = %v", err)
	}
	if assert.Len(t, got, 1) {
		assert.Equal(t, moved.Key(), got[0].Key())
	}
}
