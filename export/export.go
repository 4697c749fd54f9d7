// Package export writes results in the semicolon-delimited quoted format the
// downstream tooling expects.
package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/thn-ecu/lampdiag/sequence"
)

// quote wraps a field in double quotes, doubling embedded quotes.
func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}

// WriteResults writes scan results under the header
// "SA;Bezeichnung;Status;Antwort". Responses of one entry are joined with
// " | ".
func WriteResults(w io.Writer, results []sequence.ScanResult) error {
	if _, err := io.WriteString(w, "SA;Bezeichnung;Status;Antwort\n"); err != nil {
		return err
	}
	for _, r := range results {
		line := fmt.Sprintf("%s;%s;%s;%s\n",
			quote(r.Code),
			quote(r.Description),
			quote(r.Status),
			quote(strings.Join(r.Responses, " | ")),
		)
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}

// LogRow pairs one sent frame with the responses observed for it.
type LogRow struct {
	Sent     string
	Received string
}

// WriteLog writes a transmit/receive protocol under the header
// "Gesendet;Empfangen".
func WriteLog(w io.Writer, rows []LogRow) error {
	if _, err := io.WriteString(w, "Gesendet;Empfangen\n"); err != nil {
		return err
	}
	for _, row := range rows {
		line := fmt.Sprintf("%s;%s\n", quote(row.Sent), quote(row.Received))
		if _, err := io.WriteString(w, line); err != nil {
			return err
		}
	}
	return nil
}
