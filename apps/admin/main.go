package main

import (
	"log"
	"os"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/services/archive"
	"github.com/trezcool/rollcall/storage/database"
)

func main() {
	conf := core.Conf

	db, err := database.Open(conf)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal(err)
	}

	cli := &commandLine{
		repo:  database.NewRosterRepository(db),
		saver: archive.NewSaver(conf),
		env:   conf.Env,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			log.Fatal(err)
		}
		os.Exit(2)
	}
}
