package main

import (
	"context"
	"fmt"
	"time"

	"github.com/trezcool/rollcall/core/roster"
)

func (cli *commandLine) exportRoster() error {
	recs, err := cli.repo.ListRoster(context.Background())
	if err != nil {
		return err
	}

	snap := roster.Snapshot{Records: recs, TakenAt: time.Now().UTC()}
	path, err := cli.saver.Save(snap)
	if err != nil {
		return err
	}
	fmt.Printf("exported %d record(s) to %s\n", snap.Count(), path)
	return nil
}
