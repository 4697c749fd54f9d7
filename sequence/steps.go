// Package sequence sends fixed ordered frame lists with inter-frame pacing,
// expands wildcard test frames, and scans the unit's option-code catalogue.
package sequence

import (
	"fmt"

	"github.com/thn-ecu/lampdiag/codec"
)

// Step is one frame of a canned sequence.
type Step struct {
	ID   uint32
	Data []byte
}

func mustStep(idHex, dataHex string) Step {
	id, err := codec.ParseCANID(idHex)
	if err != nil {
		panic(fmt.Sprintf("sequence: bad step id %q: %v", idHex, err))
	}
	data, err := codec.ParseFrameData(dataHex)
	if err != nil {
		panic(fmt.Sprintf("sequence: bad step data %q: %v", dataHex, err))
	}
	return Step{ID: id, Data: data}
}

// Workshop mode: modified 0x6F1 frames, DLC 8.
var WorkshopSequence = []Step{
	mustStep("6F1", "2902100300000000"),
	mustStep("6F1", "29053101A8030200"),
}

// Operation mode.
var OperationSequence = []Step{
	mustStep("6F1", "2902100300000000"),
	mustStep("6F1", "290322F150000000"),
	mustStep("6F1", "29042ED80F000000"),
}

// Headlamp identifier sweep.
var HeadlightSequence = []Step{
	mustStep("6F1", "440322D639000000"),
	mustStep("6F1", "4430000000000000"),
	mustStep("6F1", "440322D63B000000"),
	mustStep("6F1", "440322D631000000"),
	mustStep("6F1", "4430000000000000"),
	mustStep("6F1", "440322D63A000000"),
	mustStep("6F1", "4430000000000000"),
	mustStep("6F1", "440322D529000000"),
	mustStep("6F1", "4430000000000000"),
	mustStep("6F1", "440322D663000000"),
}

// Brake pedal identifier sweep.
var BrakePedalSequence = []Step{
	mustStep("6F1", "290322DCD9000000"),
	mustStep("6F1", "2930000000000000"),
	mustStep("6F1", "290322DC1E000000"),
	mustStep("6F1", "290322DBE5000000"),
	mustStep("6F1", "2930000000000000"),
}

// Sequences maps the selectable canned sequences by name.
var Sequences = map[string][]Step{
	"workshop":  WorkshopSequence,
	"operation": OperationSequence,
	"headlight": HeadlightSequence,
	"brake":     BrakePedalSequence,
}

// GearState is one simulated gear lever position.
type GearState struct {
	Name string
	Step Step
}

var GearLeverStates = []GearState{
	{Name: "Ruhestellung", Step: mustStep("65E", "F10462D20000")},
	{Name: "Tippen nach vorne", Step: mustStep("65E", "F10462D20001")},
	{Name: "Ueberdruecken nach vorne", Step: mustStep("65E", "F10462D20002")},
	{Name: "Tippen nach hinten", Step: mustStep("65E", "F10462D20003")},
	{Name: "Ueberdruecken nach hinten", Step: mustStep("65E", "F10462D20004")},
	{Name: "Parktaster ungedrueckt", Step: mustStep("65E", "F1210000FFFFFFFF")},
	{Name: "Parktaster gedrueckt", Step: mustStep("65E", "F1210001FFFFFFFF")},
}

// GearActions aliases short action names to gear lever states.
var GearActions = map[string]string{
	"rest":         "Ruhestellung",
	"forward_tap":  "Tippen nach vorne",
	"forward_hold": "Ueberdruecken nach vorne",
	"back_tap":     "Tippen nach hinten",
	"back_hold":    "Ueberdruecken nach hinten",
	"park_press":   "Parktaster gedrueckt",
	"park_release": "Parktaster ungedrueckt",
}

// GearStateByAction resolves an action alias or state name to its step.
func GearStateByAction(action string) (GearState, error) {
	name := action
	if alias, ok := GearActions[action]; ok {
		name = alias
	}
	for _, s := range GearLeverStates {
		if s.Name == name {
			return s, nil
		}
	}
	return GearState{}, fmt.Errorf("unknown gear lever action %q", action)
}
