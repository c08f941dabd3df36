package main

import (
	"log"
	"os"

	echoapi "github.com/trezcool/rollcall/apps/api/echo"
	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/gate"
	"github.com/trezcool/rollcall/core/roster"
	"github.com/trezcool/rollcall/services/archive"
	emailsvc "github.com/trezcool/rollcall/services/email"
	logsvc "github.com/trezcool/rollcall/services/logger"
	"github.com/trezcool/rollcall/storage/database"
)

func main() {
	conf := core.Conf
	std := log.New(os.Stdout, conf.AppName+" : ", log.LstdFlags|log.Lshortfile)

	var logger core.Logger
	if conf.Debug || conf.RollbarToken == "" {
		logger = core.NewStdLogger(std)
	} else {
		logger = logsvc.NewRollbarLogger(std, conf)
	}

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	defer db.Close()
	errAndDie(database.Migrate(db))

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	rosterSvc := roster.NewService(conf, database.NewRosterRepository(db), mailSvc, archive.NewSaver(conf), logger)
	gateSvc := gate.NewService(conf)

	// start API server
	app := echoapi.NewServer(
		&echoapi.Options{
			Addr:      conf.Address(),
			Conf:      conf,
			RosterSvc: rosterSvc,
			GateSvc:   gateSvc,
			Logger:    logger,
		},
	)
	app.Start()
}

func errAndDie(err error) {
	if err != nil {
		log.Fatal(err)
	}
}
