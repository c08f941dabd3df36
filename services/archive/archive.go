// Package archive writes roster snapshots to timestamped CSV files. It is
// the local fallback for the email export: the archive always runs so a
// failed delivery never loses a roster.
package archive

import (
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/rollcall/core"
	"github.com/trezcool/rollcall/core/roster"
)

type Saver struct {
	dir string
	loc *time.Location
}

var _ roster.Archiver = (*Saver)(nil)

func NewSaver(conf *core.Config) *Saver {
	return &Saver{
		dir: conf.ArchiveDir,
		loc: conf.Location(),
	}
}

// Save writes the snapshot as roster_<yyyymmdd_hhmmss>.csv and returns the
// file path.
func (s *Saver) Save(snap roster.Snapshot) (string, error) {
	data, err := snap.CSV(s.loc)
	if err != nil {
		return "", errors.Wrap(err, "rendering roster CSV")
	}

	fname := "roster_" + snap.TakenAt.In(s.loc).Format("20060102_150405") + ".csv"
	path := filepath.Join(s.dir, fname)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", errors.Wrap(err, "writing roster archive")
	}
	return path, nil
}
