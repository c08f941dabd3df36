package roster

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"html"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/trezcool/rollcall/core"
)

const displayTimeFormat = "02/01/2006 15:04:05"

// CSV renders the snapshot as the roster CSV (the same layout the archive
// files and the email attachment share), timestamps in the display location.
func (s Snapshot) CSV(loc *time.Location) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Name", "Email", "Registered At", "Identity"}); err != nil {
		return nil, err
	}
	for _, rec := range s.Records {
		row := []string{
			rec.FullName,
			rec.Email,
			rec.RegisteredAt.In(loc).Format(displayTimeFormat),
			rec.IdentityToken,
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// NewRosterEmail builds the roster export message: an HTML table body plus
// the CSV as attachment.
func NewRosterEmail(conf *core.Config, snap Snapshot) *core.EmailMessage {
	loc := conf.Location()
	takenAt := snap.TakenAt.In(loc).Format(displayTimeFormat)

	msg := &core.EmailMessage{
		To:          []mail.Address{{Address: conf.RosterRecipient}},
		Subject:     "Attendance roster - " + takenAt,
		TextContent: rosterText(snap, loc, takenAt),
		HTMLContent: rosterHTML(snap, loc, takenAt),
	}

	if data, err := snap.CSV(loc); err == nil {
		fname := "roster_" + snap.TakenAt.In(loc).Format("20060102_150405") + ".csv"
		_ = msg.Attach(bytes.NewReader(data), fname, "text/csv")
	}
	return msg
}

func rosterText(snap Snapshot, loc *time.Location, takenAt string) string {
	b := new(strings.Builder)
	fmt.Fprintf(b, "Attendance roster\nDate: %s\nTotal students: %d\n\n", takenAt, snap.Count())
	for _, rec := range snap.Records {
		fmt.Fprintf(b, "%s <%s> - %s\n", rec.FullName, rec.Email, rec.RegisteredAt.In(loc).Format(displayTimeFormat))
	}
	return b.String()
}

func rosterHTML(snap Snapshot, loc *time.Location, takenAt string) string {
	b := new(strings.Builder)
	b.WriteString("<h2>Attendance roster</h2>")
	b.WriteString("<p>Date: " + html.EscapeString(takenAt) + "</p>")
	b.WriteString("<p>Total students: " + strconv.Itoa(snap.Count()) + "</p>")
	b.WriteString("<table border=\"1\" cellpadding=\"4\"><tr><th>Name</th><th>Email</th><th>Registered At</th></tr>")
	for _, rec := range snap.Records {
		b.WriteString("<tr><td>" + html.EscapeString(rec.FullName) + "</td>")
		b.WriteString("<td>" + html.EscapeString(rec.Email) + "</td>")
		b.WriteString("<td>" + rec.RegisteredAt.In(loc).Format(displayTimeFormat) + "</td></tr>")
	}
	b.WriteString("</table>")
	return b.String()
}
