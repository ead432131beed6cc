// Package dummydb is an in-memory store used by tests and local runs.
// Guarded units stage their writes and apply them all at once on success.
package dummydb

import (
	"context"
	"sync"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
	"github.com/trezcool/tutorias/core/user"
)

type (
	DB struct {
		mu     sync.RWMutex
		locker *core.KeyedLocker
		seq    map[string]int

		users        map[string]user.User
		institutions map[int]tutoring.Institution
		rooms        map[int]tutoring.Room
		tutors       map[int]tutoring.Tutor
		students     map[int]tutoring.Student
		sessions     map[int]tutoring.Session
		assignments  map[schedule.AssignmentKey]schedule.Assignment
		enrollments  map[int]enrollment.Enrollment
		payments     map[string]payment.Payment // by transaction code
	}

	// view reads a table through the writes staged by the current unit, if any.
	view[K comparable, V any] struct {
		mu      *sync.RWMutex
		base    map[K]V
		staged  map[K]V // nil outside a unit
		deleted map[K]struct{}
	}
)

func Open() (*DB, error) {
	db := &DB{
		locker:       core.NewKeyedLocker(),
		seq:          make(map[string]int),
		users:        make(map[string]user.User),
		institutions: make(map[int]tutoring.Institution),
		rooms:        make(map[int]tutoring.Room),
		tutors:       make(map[int]tutoring.Tutor),
		students:     make(map[int]tutoring.Student),
		sessions:     make(map[int]tutoring.Session),
		assignments:  make(map[schedule.AssignmentKey]schedule.Assignment),
		enrollments:  make(map[int]enrollment.Enrollment),
		payments:     make(map[string]payment.Payment),
	}
	return db, nil
}

// nextID mimics a SERIAL column: ids are never reused, even when a unit rolls back.
func (db *DB) nextID(table string) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.seq[table]++
	return db.seq[table]
}

func newView[K comparable, V any](mu *sync.RWMutex, base map[K]V, staging bool) view[K, V] {
	v := view[K, V]{mu: mu, base: base}
	if staging {
		v.staged = make(map[K]V)
		v.deleted = make(map[K]struct{})
	}
	return v
}

func (v view[K, V]) get(k K) (V, bool) {
	if v.staged != nil {
		if val, ok := v.staged[k]; ok {
			return val, true
		}
		if _, ok := v.deleted[k]; ok {
			var zero V
			return zero, false
		}
	}
	v.mu.RLock()
	defer v.mu.RUnlock()
	val, ok := v.base[k]
	return val, ok
}

// list returns every row, in no particular order.
func (v view[K, V]) list() []V {
	v.mu.RLock()
	rows := make([]V, 0, len(v.base)+len(v.staged))
	for k, val := range v.base {
		if v.staged != nil {
			if _, ok := v.staged[k]; ok {
				continue
			}
			if _, ok := v.deleted[k]; ok {
				continue
			}
		}
		rows = append(rows, val)
	}
	v.mu.RUnlock()

	for _, val := range v.staged {
		rows = append(rows, val)
	}
	return rows
}

func (v view[K, V]) put(k K, val V) {
	if v.staged != nil {
		delete(v.deleted, k)
		v.staged[k] = val
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.base[k] = val
}

func (v view[K, V]) del(k K) {
	if v.staged != nil {
		delete(v.staged, k)
		v.deleted[k] = struct{}{}
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.base, k)
}

// commit applies the staged writes. The caller holds mu.
func (v view[K, V]) commit() {
	for k := range v.deleted {
		delete(v.base, k)
	}
	for k, val := range v.staged {
		v.base[k] = val
	}
}

// repo implements every domain Repository over the DB tables.
type repo struct {
	db *DB

	users        view[string, user.User]
	institutions view[int, tutoring.Institution]
	rooms        view[int, tutoring.Room]
	tutors       view[int, tutoring.Tutor]
	students     view[int, tutoring.Student]
	sessions     view[int, tutoring.Session]
	assignments  view[schedule.AssignmentKey, schedule.Assignment]
	enrollments  view[int, enrollment.Enrollment]
	payments     view[string, payment.Payment]
}

func (db *DB) newRepo(staging bool) *repo {
	return &repo{
		db:           db,
		users:        newView(&db.mu, db.users, staging),
		institutions: newView(&db.mu, db.institutions, staging),
		rooms:        newView(&db.mu, db.rooms, staging),
		tutors:       newView(&db.mu, db.tutors, staging),
		students:     newView(&db.mu, db.students, staging),
		sessions:     newView(&db.mu, db.sessions, staging),
		assignments:  newView(&db.mu, db.assignments, staging),
		enrollments:  newView(&db.mu, db.enrollments, staging),
		payments:     newView(&db.mu, db.payments, staging),
	}
}

func (r *repo) commit() {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.users.commit()
	r.institutions.commit()
	r.rooms.commit()
	r.tutors.commit()
	r.students.commit()
	r.sessions.commit()
	r.assignments.commit()
	r.enrollments.commit()
	r.payments.commit()
}

// atomic runs fn while holding keys; its writes become visible only if it succeeds.
func (db *DB) atomic(ctx context.Context, keys []core.LockKey, fn func(r *repo) error) error {
	release, err := db.locker.Lock(ctx, keys...)
	if err != nil {
		return core.NewStorageError(err, "acquiring locks")
	}
	defer release()

	tx := db.newRepo(true)
	if err = fn(tx); err != nil {
		return err
	}
	if err = ctx.Err(); err != nil {
		return core.NewStorageError(err, "committing")
	}
	tx.commit()
	return nil
}

type (
	scheduleStore   struct{ *repo }
	enrollmentStore struct{ *repo }
	paymentStore    struct{ *repo }
)

var (
	_ schedule.Store   = scheduleStore{}   // interface compliance check
	_ enrollment.Store = enrollmentStore{} // interface compliance check
	_ payment.Store    = paymentStore{}    // interface compliance check
)

func NewScheduleStore(db *DB) schedule.Store {
	return scheduleStore{db.newRepo(false)}
}

func (s scheduleStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo schedule.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewEnrollmentStore(db *DB) enrollment.Store {
	return enrollmentStore{db.newRepo(false)}
}

func (s enrollmentStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo enrollment.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewPaymentStore(db *DB) payment.Store {
	return paymentStore{db.newRepo(false)}
}

func (s paymentStore) Atomic(ctx context.Context, keys []core.LockKey, fn func(repo payment.Repository) error) error {
	return s.db.atomic(ctx, keys, func(r *repo) error { return fn(r) })
}

func NewTutoringRepository(db *DB) tutoring.Repository {
	return db.newRepo(false)
}

func NewUserRepository(db *DB) user.Repository {
	return db.newRepo(false)
}
