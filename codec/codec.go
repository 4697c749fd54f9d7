// Package codec converts operator-entered hex text into strict byte values
// and expands wildcard positions for combinatorial bus tests.
package codec

import (
	"fmt"
	"iter"
	"math/big"
	"strconv"
	"strings"
)

// FieldCount is the fixed number of byte entry fields of a classic CAN
// frame.
const FieldCount = 8

// Token is one normalized byte field: either a concrete value or a wildcard
// standing for all 256 values.
type Token struct {
	Value    byte
	Wildcard bool
}

// InvalidByteTokenError reports a field that is neither a wildcard nor 1-2
// hex digits. It carries the original text as entered.
type InvalidByteTokenError struct {
	Text string
}

func (e InvalidByteTokenError) Error() string {
	return fmt.Sprintf("invalid byte field %q: expected 1-2 hex digits, empty or \"?\"", e.Text)
}

// NormalizeByte parses one byte field. Input is trimmed, upper-cased and an
// optional 0x prefix is stripped. Empty input, "?" and "??" yield a
// wildcard; a single hex digit is zero-padded. The input is never mutated.
func NormalizeByte(text string) (Token, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.ReplaceAll(s, "0X", "")
	if s == "" || s == "?" || s == "??" {
		return Token{Wildcard: true}, nil
	}
	if len(s) == 1 {
		s = "0" + s
	}
	if len(s) != 2 {
		return Token{}, InvalidByteTokenError{Text: text}
	}
	v, err := strconv.ParseUint(s, 16, 8)
	if err != nil {
		return Token{}, InvalidByteTokenError{Text: text}
	}
	return Token{Value: byte(v)}, nil
}

// TokensFromFields normalizes exactly 8 byte fields and reports how many
// concrete frame payloads they expand to: a factor of 256 per wildcard, so
// up to 256^8. The count is exact, hence the big.Int. The first invalid
// field aborts with no partial result.
func TokensFromFields(values []string) ([]Token, *big.Int, error) {
	if len(values) != FieldCount {
		return nil, nil, fmt.Errorf("expected %d byte fields, got %d", FieldCount, len(values))
	}
	tokens := make([]Token, 0, FieldCount)
	total := big.NewInt(1)
	for _, v := range values {
		t, err := NormalizeByte(v)
		if err != nil {
			return nil, nil, err
		}
		tokens = append(tokens, t)
		if t.Wildcard {
			total.Mul(total, big.NewInt(256))
		}
	}
	return tokens, total, nil
}

// Combinations yields every concrete payload the token list expands to, in
// ascending per-position byte order with field order preserved. The sequence
// is lazy and restartable; it is on the caller to bound iteration, since an
// all-wildcard list expands to 256^8 payloads.
func Combinations(tokens []Token) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		combo := make([]byte, len(tokens))
		var walk func(i int) bool
		walk = func(i int) bool {
			if i == len(tokens) {
				out := make([]byte, len(combo))
				copy(out, combo)
				return yield(out)
			}
			if !tokens[i].Wildcard {
				combo[i] = tokens[i].Value
				return walk(i + 1)
			}
			for v := 0; v < 256; v++ {
				combo[i] = byte(v)
				if !walk(i + 1) {
					return false
				}
			}
			return true
		}
		walk(0)
	}
}

// ParseCANID parses an 11-bit arbitration id from hex text, with optional
// 0x prefix.
func ParseCANID(text string) (uint32, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	s = strings.TrimPrefix(s, "0X")
	if s == "" {
		return 0, fmt.Errorf("empty CAN id")
	}
	id, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid CAN id %q", text)
	}
	if id > 0x7FF {
		return 0, fmt.Errorf("CAN id 0x%X exceeds 11 bits", id)
	}
	return uint32(id), nil
}

// ParseFrameData decodes a contiguous hex string into at most 8 data bytes.
func ParseFrameData(text string) ([]byte, error) {
	s := strings.ToUpper(strings.TrimSpace(text))
	if len(s)%2 != 0 {
		return nil, fmt.Errorf("frame data %q has an odd number of hex digits", text)
	}
	if len(s) > 16 {
		return nil, fmt.Errorf("frame data %q exceeds 8 bytes", text)
	}
	data := make([]byte, len(s)/2)
	for i := range data {
		v, err := strconv.ParseUint(s[2*i:2*i+2], 16, 8)
		if err != nil {
			return nil, fmt.Errorf("frame data %q is not valid hex", text)
		}
		data[i] = byte(v)
	}
	return data, nil
}
