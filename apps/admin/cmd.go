package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/user"
	"github.com/trezcool/tutorias/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	gooseRunFunc     = database.Run      // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	usrSvc     *user.Service
	paymentSvc *payment.Service
	logger     core.Logger
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARGS] - run a goose command (up, up-by-one, up-to, down, down-to, redo, reset, status, version)")
	fmt.Println("  adduser -username USERNAME -email EMAIL [-role ROLE] - create or update an active user")
	fmt.Println("  resetpassword -username USERNAME|EMAIL - reset user's password")
	fmt.Println("  completepayment -code CODE - confirm a QR payment and activate its enrollment")
	fmt.Println("  expirepayments - expire overdue pending payments")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserUname := addUserCmd.String("username", "", "The user's username. The password will be prompted next.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", string(core.RoleAdmin), "One of admin, institution_manager, tutor, student.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordUname := resetPasswordCmd.String("username", "", "The user's username or email. The password will be prompted next.")

	completePaymentCmd := flag.NewFlagSet("completepayment", flag.ContinueOnError)
	completePaymentCode := completePaymentCmd.String("code", "", "The payment's transaction code.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserUname == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			addUserCmd.Usage()
			return errHelp
		}
		usr, err := cli.usrSvc.UpdateOrCreate(ctx, *addUserUname, *addUserEmail, pwd, core.Role(*addUserRole))
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("user %s saved with role %s", usr.Username, usr.Role))
		return nil

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordUname == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword()
		if err != nil {
			return err
		}
		if pwd == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		usr, err := cli.usrSvc.ResetPassword(ctx, *resetPasswordUname, pwd)
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("password of %s reset", usr.Username))
		return nil

	case "completepayment":
		if err := completePaymentCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *completePaymentCode == "" {
			completePaymentCmd.Usage()
			return errHelp
		}
		p, e, err := cli.paymentSvc.Complete(ctx, *completePaymentCode)
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("payment %s completed, enrollment %d is %s", p.TransactionCode, e.ID, e.State()))
		return nil

	case "expirepayments":
		n, err := cli.paymentSvc.ExpireStale(ctx)
		if err != nil {
			return err
		}
		cli.logger.Info(fmt.Sprintf("%d payment(s) expired", n))
		return nil

	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) migrate(args []string) error {
	return gooseRunFunc(cli.db, args[0], args[1:]...)
}

func promptPassword() (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	return string(pwd), nil
}
