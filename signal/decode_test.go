package signal

import "testing"

func TestDecodeLED(t *testing.T) {
	payload := make([]byte, 20)
	for i := 0; i < 10; i++ {
		payload[10+i] = 5 // 50 mA each
	}
	percents, currents := DecodeLED(payload)
	for i := 0; i < LEDChannels; i++ {
		if percents[i] != 0 {
			t.Errorf("channel %d percent = %d, want 0", i+1, percents[i])
		}
		if currents[i] != 50 {
			t.Errorf("channel %d current = %d, want 50", i+1, currents[i])
		}
	}
}

func TestDecodeLEDClampsPercent(t *testing.T) {
	payload := make([]byte, 20)
	payload[0] = 250
	payload[1] = 100
	percents, _ := DecodeLED(payload)
	if percents[0] != 100 {
		t.Errorf("percent = %d, want clamped to 100", percents[0])
	}
	if percents[1] != 100 {
		t.Errorf("percent = %d, want 100", percents[1])
	}
}

func TestDecodeLEDShortPayload(t *testing.T) {
	// 5 bytes: channels 1-5 get percentages, everything else reads zero.
	percents, currents := DecodeLED([]byte{10, 20, 30, 40, 50})
	want := [LEDChannels]int{10, 20, 30, 40, 50}
	if percents != want {
		t.Errorf("percents = %v, want %v", percents, want)
	}
	if currents != [LEDChannels]int{} {
		t.Errorf("currents = %v, want all zero", currents)
	}
}

func TestDecodeAHL(t *testing.T) {
	cases := []struct {
		payload []byte
		want    float64
	}{
		{[]byte{0x01, 0x2C}, 30.0},
		{[]byte{0x00, 0x05}, 0.5},
		{[]byte{0x0A}, 1.0},
		{nil, 0},
	}
	for _, c := range cases {
		if got := DecodeAHL(c.payload); got != c.want {
			t.Errorf("DecodeAHL(% X) = %v, want %v", c.payload, got, c.want)
		}
	}
}

func TestDecodeLWR(t *testing.T) {
	if got := DecodeLWR([]byte{25}); got != 2.5 {
		t.Errorf("DecodeLWR = %v, want 2.5", got)
	}
	if got := DecodeLWR(nil); got != 0 {
		t.Errorf("DecodeLWR(nil) = %v, want 0", got)
	}
}

func TestLEDActive(t *testing.T) {
	cases := []struct {
		payload []byte
		want    bool
	}{
		{nil, false},
		{make([]byte, 20), false},
		{[]byte{0x00, 0x01}, true},                   // 1 % duty
		{[]byte{0x05, 0x00}, true},                   // 50 mA
		{[]byte{0x04, 0x00}, false},                  // 40 mA, below threshold
		{[]byte{0x00, 0x00, 0x00, 0x00, 0x06}, true}, // third pair, current only
	}
	for _, c := range cases {
		if got := LEDActive(c.payload); got != c.want {
			t.Errorf("LEDActive(% X) = %v, want %v", c.payload, got, c.want)
		}
	}
}
