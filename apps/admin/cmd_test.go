package main

import (
	"os"
	"strings"
	"testing"

	"github.com/trezcool/rollcall/core/roster"
	"github.com/trezcool/rollcall/services/archive"
	dummydb "github.com/trezcool/rollcall/storage/database/dummy"
	testutil "github.com/trezcool/rollcall/tests"
)

var repo roster.Repository

func setup(t *testing.T) (*commandLine, string) {
	conf := testutil.NewConfig(t)

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("setup() failed: %v", err)
	}
	repo = dummydb.NewRosterRepository(db)

	cli := &commandLine{
		repo:  repo,
		saver: archive.NewSaver(conf),
		env:   conf.Env,
	}
	return cli, conf.ArchiveDir
}

type cliTest struct {
	name    string
	args    []string // without program name
	pwd     string
	wantErr error
}

func Test_commandLine_hashPassword(t *testing.T) {
	cli, _ := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "empty password", args: []string{"hashpassword"}, wantErr: errHelp},
		{name: "ok", args: []string{"hashpassword"}, pwd: "professor@aws"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		readPasswordFunc = func(fd int) ([]byte, error) {
			return []byte(tt.pwd), nil
		}

		t.Run(tt.name, func(t *testing.T) {
			if err := cli.run(args); err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func Test_commandLine_exportRoster(t *testing.T) {
	cli, archiveDir := setup(t)

	testutil.CreateRecord(t, repo, "Ana Silva", "ana@test.test", "9.9.9.9")
	testutil.CreateRecord(t, repo, "Bea Costa", "bea@test.test", "")

	if err := cli.run([]string{"admin", "exportroster"}); err != nil {
		t.Fatalf("cli.run() unexpected error = %v", err)
	}

	entries, err := os.ReadDir(archiveDir)
	if err != nil {
		t.Fatalf("os.ReadDir() failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 archive file, got %d", len(entries))
	}
	name := entries[0].Name()
	if !strings.HasPrefix(name, "roster_") || !strings.HasSuffix(name, ".csv") {
		t.Errorf("unexpected archive file name %q", name)
	}

	data, err := os.ReadFile(archiveDir + "/" + name)
	if err != nil {
		t.Fatalf("os.ReadFile() failed: %v", err)
	}
	for _, want := range []string{"Ana Silva", "ana@test.test", "Bea Costa", "9.9.9.9"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("archive missing %q", want)
		}
	}
}
