// Package export writes leads as a spreadsheet-friendly CSV document.
package export

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/hazyhaar/leadscout/lead"
)

// Header is the column row of every export.
var Header = []string{"Origem", "Nome", "Grupo", "Status", "Post", "Perfil", "Notas", "Data"}

// DateLayout formats the Data column.
const DateLayout = "02/01/2006 15:04:05"

// Options tunes WriteCSV.
type Options struct {
	// Location renders dates. Default: time.Local.
	Location *time.Location
	// Now stamps leads without a first-seen time. Default: time.Now.
	Now func() time.Time
}

// WriteCSV writes leads as semicolon-delimited rows preceded by Header.
// Rows are separated by "\n"; fields holding ';', '"' or a newline are
// quoted with doubled inner quotes.
func WriteCSV(w io.Writer, leads []lead.Lead, opts Options) error {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	bw := bufio.NewWriter(w)
	writeRow(bw, Header)
	for _, l := range leads {
		bw.WriteByte('\n')
		writeRow(bw, Row(l, opts))
	}
	return bw.Flush()
}

// Row renders one lead in Header order.
func Row(l lead.Lead, opts Options) []string {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	created := time.UnixMilli(l.FirstSeenAt)
	if l.FirstSeenAt == 0 && opts.Now != nil {
		created = opts.Now()
	}
	return []string{
		l.Origin,
		l.Post.Author,
		l.GroupSlug,
		string(l.Status),
		l.Post.Permalink,
		l.ProfileName,
		strings.ReplaceAll(l.Note, "\n", " "),
		created.In(loc).Format(DateLayout),
	}
}

func writeRow(w *bufio.Writer, fields []string) {
	for i, f := range fields {
		if i > 0 {
			w.WriteByte(';')
		}
		w.WriteString(Field(f))
	}
}

// Field quotes s when it contains the delimiter, a quote or a newline.
func Field(s string) string {
	if !strings.ContainsAny(s, ";\"\n") {
		return s
	}
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
