package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/trezcool/rollcall/core/roster"
	"github.com/trezcool/rollcall/services/archive"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	repo  roster.Repository
	saver *archive.Saver
	env   string
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  hashpassword - generate the professor password hash for the env config")
	fmt.Println("  exportroster - write the current roster to a timestamped CSV")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	exportRosterCmd := flag.NewFlagSet("exportroster", flag.ExitOnError)

	switch args[1] {
	case "hashpassword":
		fmt.Print("Enter password:")
		pwd, err := readPasswordFunc(int(syscall.Stdin))
		fmt.Println()
		if err != nil {
			return err
		}
		if len(pwd) == 0 {
			cli.printUsage()
			return errHelp
		}
		return cli.hashPassword(string(pwd))
	case "exportroster":
		if err := exportRosterCmd.Parse(args[2:]); err != nil {
			return err
		}
		return cli.exportRoster()
	default:
		cli.printUsage()
		return errHelp
	}
}
