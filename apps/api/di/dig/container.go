package dig_container

import (
	"database/sql"
	"fmt"
	"log"
	"os"

	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/tutorias/apps/api/echo"
	"github.com/trezcool/tutorias/core"
	"github.com/trezcool/tutorias/core/enrollment"
	"github.com/trezcool/tutorias/core/payment"
	"github.com/trezcool/tutorias/core/schedule"
	"github.com/trezcool/tutorias/core/tutoring"
	"github.com/trezcool/tutorias/core/user"
	emailsvc "github.com/trezcool/tutorias/services/email"
	logsvc "github.com/trezcool/tutorias/services/logger"
	"github.com/trezcool/tutorias/storage/database"
	sqlxrepos "github.com/trezcool/tutorias/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

type serverParams struct {
	dig.In

	Conf          *core.Config
	Logger        core.Logger
	UserSvc       *user.Service
	ScheduleSvc   *schedule.Service
	EnrollmentSvc *enrollment.Service
	PaymentSvc    *payment.Service
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) (*sql.DB, *sqlxrepos.DB) {
	setUp := func() (*sql.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db, sqlxrepos.NewDB(db)
}

func newCatalog(db *sqlxrepos.DB, conf *core.Config) *tutoring.Catalog {
	return tutoring.NewCatalog(sqlxrepos.NewTutoringRepository(db), conf)
}

func newServer(p serverParams) *echoapi.Server {
	return echoapi.NewServer(&echoapi.Options{
		Conf:          p.Conf,
		Logger:        p.Logger,
		UserSvc:       p.UserSvc,
		ScheduleSvc:   p.ScheduleSvc,
		EnrollmentSvc: p.EnrollmentSvc,
		PaymentSvc:    p.PaymentSvc,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newDB))
	must(c.Provide(emailsvc.NewService))

	// repositories
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewScheduleStore))
	must(c.Provide(sqlxrepos.NewEnrollmentStore))
	must(c.Provide(sqlxrepos.NewPaymentStore))
	must(c.Provide(newCatalog))

	// services
	must(c.Provide(user.NewService))
	must(c.Provide(schedule.NewService))
	must(c.Provide(enrollment.NewService))
	must(c.Provide(payment.NewService))
	must(c.Provide(func(svc *enrollment.Service) payment.Activator { return svc }))

	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
