package main

import (
	"log"
	"os"

	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/user"
	emailsvc "github.com/trezcool/tutorias/services/email"
	logsvc "github.com/trezcool/tutorias/services/logger"
	"github.com/trezcool/tutorias/storage/database"
	sqlxrepos "github.com/trezcool/tutorias/storage/database/sqlx"
)

func main() {
	conf := core.NewConfig()
	stdLogger := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	core.ParseEmailTemplates(conf, logger)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal("opening database", err)
	}
	defer db.Close()

	repos := sqlxrepos.NewDB(db)
	enrollmentSvc := enrollment.NewService(sqlxrepos.NewEnrollmentStore(repos), emailsvc.NewService(conf, logger), logger)

	// start CLI
	cli := commandLine{
		db:         db,
		usrSvc:     user.NewService(sqlxrepos.NewUserRepository(repos)),
		paymentSvc: payment.NewService(sqlxrepos.NewPaymentStore(repos), enrollmentSvc, conf, logger),
		logger:     logger,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		db.Close()
		os.Exit(1)
	}
}
