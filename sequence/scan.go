package sequence

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/thn-ecu/lampdiag/canbus"
	"github.com/thn-ecu/lampdiag/logstream"
)

// SAEntry is one vehicle option code with its catalogue description. Codes
// are read as 16-bit identifiers; some catalogue codes contain letters
// outside the hex range and cannot be queried.
type SAEntry struct {
	Code        string
	Description string
}

// SACatalogue lists the option codes probed by the automatic search.
var SACatalogue = []SAEntry{
	{"0230", "Zusatzumfang EU-spezifisch"},
	{"0249", "Multifunktion für Lenkrad"},
	{"02D6", "BMW i LM Rad Sternspeiche 427"},
	{"02PA", "Radschraubensicherung"},
	{"02VB", "Reifendruckanzeige"},
	{"0428", "Warndreieck und Verbandstasche"},
	{"0430", "Innen-/Aussensp. mit Abblendautomatik"},
	{"0442", "Getränkehalter"},
	{"0473", "Armlehne vorne"},
	{"0493", "Ablagenpaket"},
	{"04EX", "Interieuroberfläche andesitsilber matt"},
	{"04U6", "Schnellladen Wechselstrom mehrphasig"},
	{"04U7", "Schnellladen Gleichstrom"},
	{"0521", "Regensensor"},
	{"0534", "Klimaautomatik"},
	{"0544", "Geschwindigkeitsregelung mit Bremsfunkt."},
	{"0548", "Kilometertacho"},
	{"0570", "Stärkere Stromversorgung"},
	{"05DA", "Deaktivierung Airbag Beifahrer"},
	{"0609", "Navigationssystem Professional"},
	{"06AC", "Intelligenter Notruf"},
	{"06AE", "TELESERVICES"},
	{"06AK", "Connected Drive Services"},
	{"06AM", "Real-Time Traffic Information"},
	{"06AN", "Concierge Services"},
	{"06AU", "Connected eDrive services"},
	{"06NW", "Telefonie mit Wireless Charging"},
	{"06WD", "WLAN Hotspot"},
	{"07RS", "Paket Comfort"},
	{"0801", "DEUTSCHLAND-AUSFUEHRUNG"},
	{"0851", "Sprachversion deutsch"},
	{"0879", "Bordliteratur deutsch"},
	{"08R9", "Kältemittel R1234yf"},
	{"09BD", "Business Package"},
}

// Scan result statuses, matching the exported table vocabulary.
const (
	StatusAnswer  = "Antwort"
	StatusTimeout = "Timeout"
	StatusError   = "Fehler"
)

// ScanResult is the outcome for one catalogue entry.
type ScanResult struct {
	Code        string
	Description string
	Status      string
	Responses   []string
}

// ScanParams configures one automatic search run. The fields mirror a
// profile but are entered freely so unknown endpoints can be probed too.
type ScanParams struct {
	TxID    uint32
	RxID    uint32
	EAReq   byte
	EARsp   byte
	Timeout time.Duration
}

const scanRecvPoll = 50 * time.Millisecond

// Scan probes every catalogue entry with a read-data-by-identifier request
// and records all traffic seen within the timeout window. Non-hex codes are
// marked failed without touching the transport. The cancel flag is honored
// between entries and inside each response window; the transport is released
// on every exit path.
func Scan(open canbus.OpenFunc, params ScanParams, log *logstream.Queue, cancel *atomic.Bool) ([]ScanResult, error) {
	if params.Timeout <= 0 {
		return nil, fmt.Errorf("scan timeout must be positive")
	}

	bus, err := open()
	if err != nil {
		return nil, err
	}
	defer bus.Close()

	cancelled := func() bool { return cancel != nil && cancel.Load() }

	results := make([]ScanResult, 0, len(SACatalogue))
	for _, entry := range SACatalogue {
		if cancelled() {
			break
		}
		result := ScanResult{Code: entry.Code, Description: entry.Description}
		if log != nil {
			log.Pushf("Prüfe SA %s …", entry.Code)
		}

		did, err := strconv.ParseUint(entry.Code, 16, 16)
		if err != nil {
			result.Status = StatusError
			result.Responses = []string{"Ungültige SA"}
			results = append(results, result)
			continue
		}

		request := []byte{
			params.EAReq, 0x03, 0x22,
			byte(did >> 8), byte(did),
			0x00, 0x00, 0x00,
		}
		if err := bus.Send(params.TxID, request); err != nil {
			result.Status = StatusError
			result.Responses = []string{fmt.Sprintf("Senden fehlgeschlagen: %v", err)}
			results = append(results, result)
			continue
		}

		deadline := time.Now().Add(params.Timeout)
		for !cancelled() && time.Now().Before(deadline) {
			f, err := bus.Recv(scanRecvPoll)
			if err != nil {
				result.Status = StatusError
				result.Responses = append(result.Responses, fmt.Sprintf("Empfang fehlgeschlagen: %v", err))
				break
			}
			if f == nil {
				continue
			}
			result.Responses = append(result.Responses, f.String())
			// The addressed unit has spoken; the window ends early.
			if f.ID == params.RxID && (len(f.Data) == 0 || f.Data[0] == params.EARsp) {
				break
			}
		}

		if result.Status == "" {
			if len(result.Responses) > 0 {
				result.Status = StatusAnswer
			} else {
				result.Status = StatusTimeout
			}
		}
		results = append(results, result)
	}
	return results, nil
}
