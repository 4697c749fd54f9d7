package export

import (
	"strings"
	"testing"

	"github.com/thn-ecu/lampdiag/sequence"
)

func TestWriteResults(t *testing.T) {
	results := []sequence.ScanResult{
		{
			Code:        "0230",
			Description: "Zusatzumfang EU-spezifisch",
			Status:      sequence.StatusAnswer,
			Responses:   []string{"ID=0x643 DLC=6 Data=F1 03 62 02 30 01", "ID=0x643 DLC=2 Data=F1 00"},
		},
		{
			Code:        "02PA",
			Description: "Radschraubensicherung",
			Status:      sequence.StatusError,
			Responses:   []string{"Ungültige SA"},
		},
	}

	var sb strings.Builder
	if err := WriteResults(&sb, results); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want header + 2 rows", len(lines))
	}
	if lines[0] != "SA;Bezeichnung;Status;Antwort" {
		t.Errorf("header = %q", lines[0])
	}
	want := `"0230";"Zusatzumfang EU-spezifisch";"Antwort";"ID=0x643 DLC=6 Data=F1 03 62 02 30 01 | ID=0x643 DLC=2 Data=F1 00"`
	if lines[1] != want {
		t.Errorf("row = %q\nwant  %q", lines[1], want)
	}
}

func TestWriteResultsQuotesEmbeddedQuotes(t *testing.T) {
	results := []sequence.ScanResult{
		{Code: "0230", Description: `mit "Anführungszeichen"`, Status: sequence.StatusTimeout},
	}
	var sb strings.Builder
	if err := WriteResults(&sb, results); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(sb.String(), `"mit ""Anführungszeichen"""`) {
		t.Errorf("embedded quotes not doubled: %q", sb.String())
	}
}

func TestWriteLog(t *testing.T) {
	rows := []LogRow{
		{Sent: "ID=0x6F1 DLC=8 Data=29 02 10 03 00 00 00 00", Received: "ID=0x643 DLC=2 Data=F1 7E"},
		{Sent: "ID=0x6F1 DLC=8 Data=29 05 31 01 A8 03 02 00", Received: ""},
	}
	var sb strings.Builder
	if err := WriteLog(&sb, rows); err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimRight(sb.String(), "\n"), "\n")
	if lines[0] != "Gesendet;Empfangen" {
		t.Errorf("header = %q", lines[0])
	}
	if lines[2] != `"ID=0x6F1 DLC=8 Data=29 05 31 01 A8 03 02 00";""` {
		t.Errorf("empty response row = %q", lines[2])
	}
}
