package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// NotFoundError reports a reference that does not resolve to a live row.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// Conflict kinds
const (
	ConflictRoom     = "room"
	ConflictTutor    = "tutor"
	ConflictPayment  = "payment"
	ConflictCapacity = "capacity"
)

// ConflictError reports a scheduling overlap or a transition blocked by related state.
type ConflictError struct {
	Kind string
	Msg  string
}

func NewConflictError(kind, msg string) error {
	return &ConflictError{Kind: kind, Msg: msg}
}

func (err ConflictError) Error() string {
	return err.Msg
}

type CapacityExceededError struct {
	SessionID int
	Capacity  int
	Occupied  int
}

func NewCapacityExceededError(sessionID, capacity, occupied int) error {
	return &CapacityExceededError{SessionID: sessionID, Capacity: capacity, Occupied: occupied}
}

func (err CapacityExceededError) Error() string {
	return fmt.Sprintf("tutoring session %d is full (%d/%d seats taken)", err.SessionID, err.Occupied, err.Capacity)
}

type DuplicateError struct {
	Msg string
}

func NewDuplicateError(msg string) error {
	return &DuplicateError{Msg: msg}
}

func (err DuplicateError) Error() string {
	return err.Msg
}

type PermissionError struct {
	Msg string
}

func NewPermissionError(msg string) error {
	return &PermissionError{Msg: msg}
}

func (err PermissionError) Error() string {
	if err.Msg == "" {
		return "permission denied"
	}
	return err.Msg
}

// InvalidStateError reports a transition attempted from a state that does not permit it.
type InvalidStateError struct {
	Action string
	State  string
}

func NewInvalidStateError(action, state string) error {
	return &InvalidStateError{Action: action, State: state}
}

func (err InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s: current state is %q", err.Action, err.State)
}

// StorageError wraps unexpected failures of the underlying store.
type StorageError struct {
	Err error
}

func NewStorageError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return &StorageError{Err: errors.Wrap(err, msg)}
}

func (err StorageError) Error() string {
	return "storage: " + err.Err.Error()
}

func (err StorageError) Unwrap() error {
	return err.Err
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsCapacityExceeded(err error) bool {
	var target *CapacityExceededError
	return errors.As(err, &target)
}

func IsDuplicate(err error) bool {
	var target *DuplicateError
	return errors.As(err, &target)
}

func IsPermission(err error) bool {
	var target *PermissionError
	return errors.As(err, &target)
}

func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

func IsStorage(err error) bool {
	var target *StorageError
	return errors.As(err, &target)
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
