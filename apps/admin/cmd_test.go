package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/user"
	"github.com/trezcool/tutorias/tests"
)

func setup(t *testing.T) (*commandLine, *testutil.Fixture) {
	f := testutil.NewFixture(t)
	return &commandLine{
		usrSvc:     f.UserSvc,
		paymentSvc: f.PaymentSvc,
		logger:     f.Logger,
	}, f
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(t *testing.T, pwd string) {
	orig := readPasswordFunc
	readPasswordFunc = func(fd int) ([]byte, error) { return []byte(pwd), nil }
	t.Cleanup(func() { readPasswordFunc = orig })
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _ := setup(t)

	orig := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = orig })
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, f := setup(t)
	ctx := context.Background()

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "email missing", args: []string{"adduser", "-username", "kofi"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "-username", "kofi", "-email", "kofi@example.com"}, wantErr: errHelp},
		{
			name: "invalid role", args: []string{"adduser", "-username", "kofi", "-email", "kofi@example.com", "-role", "lol"},
			extra: "pwd", wantErrStr: "invalid role",
		},
		{name: "create admin", args: []string{"adduser", "-username", "Kofi", "-email", "kofi@example.com"}, extra: "pwd"},
		{
			name: "update existing as tutor", args: []string{"adduser", "-username", "kofi", "-email", "kofi@example.com", "-role", "tutor"},
			extra: "newpwd",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.True(t, core.IsValidation(err), err)
				return
			}
			tt.check(t, err)
		})
	}

	usr, err := f.UserSvc.GetByUsernameOrEmail(ctx, "kofi@example.com")
	require.NoError(t, err)
	assert.Equal(t, "kofi", usr.Username)
	assert.Equal(t, core.RoleTutor, usr.Role)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("newpwd"))

	users, err := f.UserSvc.Query(ctx, user.QueryFilter{Search: "kofi"})
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, f := setup(t)

	usr := testutil.CreateUser(t, f.UserRepo, "User", "awe", "awe@test.cd", "mdr", core.RoleStudent, true)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "-username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "-username", "lol"}, extra: "lol", wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "-username", usr.Username}, extra: "lol"},
		{name: "reset with email", args: []string{"resetpassword", "-username", usr.Email}, extra: "lmao"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			pwd, _ := tt.extra.(string)
			mockPassword(t, pwd)
			err := cli.run(append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				refreshed, err := f.UserSvc.GetByID(context.Background(), usr.ID)
				require.NoError(t, err)
				assert.NoError(t, refreshed.CheckPassword(pwd), "failed to update password")
			}
		})
	}
}

func Test_commandLine_payments(t *testing.T) {
	cli, f := setup(t)
	ctx := context.Background()

	e := f.AddEnrollment(t, f.Students[0], f.Session, enrollment.StatusPending, enrollment.RequestEnrolled)
	p, err := f.PaymentSvc.Generate(ctx, f.Admin.Actor(), e.ID)
	require.NoError(t, err)

	other := f.AddEnrollment(t, f.Students[1], f.Session, enrollment.StatusPending, enrollment.RequestEnrolled)
	past := time.Now().UTC().Add(-time.Hour)
	f.DB.AddPayment(payment.Payment{
		EnrollmentID:    other.ID,
		Amount:          f.Session.Price,
		Status:          payment.StatusPending,
		TransactionCode: "QR-stale",
		ExpiresAt:       past,
		CreatedAt:       past,
	})

	tests := []cliTest{
		{name: "code missing", args: []string{"completepayment"}, wantErr: errHelp},
		{name: "unknown code", args: []string{"completepayment", "-code", "QR-nope"}, wantErr: payment.ErrNotFound},
		{name: "complete", args: []string{"completepayment", "-code", p.TransactionCode}},
		{name: "expire", args: []string{"expirepayments"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(append([]string{"admin"}, tt.args...)))
		})
	}

	activated, err := f.EnrollmentSvc.GetEnrollment(ctx, f.Admin.Actor(), e.ID)
	require.NoError(t, err)
	assert.Equal(t, enrollment.StateActive, activated.State())

	stale, err := f.PaymentSvc.Get(ctx, "QR-stale")
	require.NoError(t, err)
	assert.Equal(t, payment.StatusExpired, stale.Status)
}
