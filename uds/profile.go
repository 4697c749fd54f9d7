package uds

import "fmt"

// Profile identifies one logical diagnostic endpoint behind the gateway:
// its request/response arbitration ids and the extended address byte used
// in each direction. Profiles are read-only configuration.
type Profile struct {
	Name  string
	TxID  uint32
	RxID  uint32
	EAReq byte
	EARsp byte
}

// The two symmetric headlamp units.
var Profiles = map[string]Profile{
	"links":  {Name: "links", TxID: 0x06F1, RxID: 0x0643, EAReq: 0x43, EARsp: 0xF1},
	"rechts": {Name: "rechts", TxID: 0x06F2, RxID: 0x0644, EAReq: 0x44, EARsp: 0xF1},
}

// ProfileByName looks up a built-in profile.
func ProfileByName(name string) (Profile, error) {
	p, ok := Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q", name)
	}
	return p, nil
}

// Data identifiers served by the headlamp control units.
const (
	DIDLEDStatus   uint16 = 0xD631 // 10 duty-cycle percentages + 10 currents
	DIDAHLPosition uint16 = 0xD663 // adaptive headlight angle, 0.1 degree steps
	DIDLWRPosition uint16 = 0xD63B // range leveling angle, 0.1 degree steps
)
