package card

import "fmt"

// WireString renders the 2-character wire form used on the protocol
// envelope: rank first, suit second, e.g. "Ah", "Td", "2c".
func (c Card) WireString() string {
	if c == CardInvalid || c == CardRear {
		return ""
	}
	rank := c.Rank()
	var rankByte byte
	switch rank {
	case 1:
		rankByte = 'A'
	case 10:
		rankByte = 'T'
	case 11:
		rankByte = 'J'
	case 12:
		rankByte = 'Q'
	case 13:
		rankByte = 'K'
	default:
		rankByte = byte('0' + rank)
	}

	var suitByte byte
	switch c.Suit() {
	case Spade:
		suitByte = 's'
	case Heart:
		suitByte = 'h'
	case Club:
		suitByte = 'c'
	case Diamond:
		suitByte = 'd'
	}
	return string([]byte{rankByte, suitByte})
}

// ParseWire parses the 2-character wire form ("Ah", "Td", "2c", ...).
func ParseWire(s string) (Card, error) {
	if len(s) != 2 {
		return 0, fmt.Errorf("invalid wire card %q", s)
	}
	return ThdmStrToCard(s)
}

func (c Card) MarshalJSON() ([]byte, error) {
	return []byte(`"` + c.WireString() + `"`), nil
}

func (c *Card) UnmarshalJSON(b []byte) error {
	if len(b) < 2 {
		return fmt.Errorf("invalid card literal %q", b)
	}
	s := string(b[1 : len(b)-1])
	parsed, err := ParseWire(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
