// Package telegram converts EnOcean radio telegrams between their wire form and
// a structured Telegram value. It holds no state and performs no I/O.
package telegram

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
)

// RORG values of the radio telegram types handled by the gateway.
const (
	RORGRPS byte = 0xF6 // repeated switch
	RORG1BS byte = 0xD5 // one byte
	RORG4BS byte = 0xA5 // four byte
)

// BroadcastID is the default destination of outgoing telegrams.
const BroadcastID uint32 = 0xFFFFFF

// Overhead is the number of wire bytes surrounding the payload:
// RORG(1) + sender(4) + status(1) + subtel(1) + destination(4) + dBm(1) + security(1).
const Overhead = 13

var (
	ErrMalformedTelegram = errors.New("malformed telegram")
	ErrInvalidLocalID    = errors.New("invalid local id")
)

// Telegram is a decoded EnOcean radio telegram.
type Telegram struct {
	RORG             byte
	Payload          []byte
	SenderID         uint32
	DestinationID    uint32
	Status           byte
	SubTelegramCount byte
	DBm              int8
	SecurityLevel    byte
}

// New returns a telegram with the default addressing used for commands:
// broadcast destination, one sub-telegram, zero status, dBm and security level.
func New(rorg byte, payload []byte, sender uint32) Telegram {
	return Telegram{
		RORG:             rorg,
		Payload:          append([]byte(nil), payload...),
		SenderID:         sender,
		DestinationID:    BroadcastID,
		SubTelegramCount: 1,
	}
}

// PayloadLength returns the number of data bytes a telegram of the given RORG
// carries. ok is false for RORGs with no fixed length.
func PayloadLength(rorg byte) (n int, ok bool) {
	switch rorg {
	case RORGRPS, RORG1BS:
		return 1, true
	case RORG4BS:
		return 4, true
	}
	return 0, false
}

// Decode parses the wire layout
//
//	[RORG][payload][sender 4B][status][subtel][destination 4B][dBm][security]
//
// Ids are fixed-width big-endian. For RORGs with a known payload length the
// input must match it exactly; otherwise the payload takes whatever is left.
func Decode(raw []byte) (Telegram, error) {
	if len(raw) < Overhead {
		return Telegram{}, fmt.Errorf("%w: %d bytes, need at least %d", ErrMalformedTelegram, len(raw), Overhead)
	}
	rorg := raw[0]
	n := len(raw) - Overhead
	if want, ok := PayloadLength(rorg); ok && n != want {
		return Telegram{}, fmt.Errorf("%w: rorg 0x%02X wants %d data bytes, got %d",
			ErrMalformedTelegram, rorg, want, n)
	}

	t := Telegram{RORG: rorg, Payload: make([]byte, n)}
	copy(t.Payload, raw[1:1+n])
	rest := raw[1+n:]
	t.SenderID = binary.BigEndian.Uint32(rest[0:4])
	t.Status = rest[4]
	t.SubTelegramCount = rest[5]
	t.DestinationID = binary.BigEndian.Uint32(rest[6:10])
	t.DBm = int8(rest[10])
	t.SecurityLevel = rest[11]
	return t, nil
}

// Encode produces the wire form of t. It is the inverse of Decode.
func (t Telegram) Encode() ([]byte, error) {
	if want, ok := PayloadLength(t.RORG); ok && len(t.Payload) != want {
		return nil, fmt.Errorf("%w: rorg 0x%02X wants %d data bytes, got %d",
			ErrMalformedTelegram, t.RORG, want, len(t.Payload))
	}
	buf := make([]byte, 0, Overhead+len(t.Payload))
	buf = append(buf, t.RORG)
	buf = append(buf, t.Payload...)
	buf = binary.BigEndian.AppendUint32(buf, t.SenderID)
	buf = append(buf, t.Status, t.SubTelegramCount)
	buf = binary.BigEndian.AppendUint32(buf, t.DestinationID)
	buf = append(buf, byte(t.DBm), t.SecurityLevel)
	return buf, nil
}

// Equal reports whether two telegrams carry the same fields.
func (t Telegram) Equal(o Telegram) bool {
	return t.RORG == o.RORG &&
		bytes.Equal(t.Payload, o.Payload) &&
		t.SenderID == o.SenderID &&
		t.DestinationID == o.DestinationID &&
		t.Status == o.Status &&
		t.SubTelegramCount == o.SubTelegramCount &&
		t.DBm == o.DBm &&
		t.SecurityLevel == o.SecurityLevel
}

func (t Telegram) String() string {
	return fmt.Sprintf("rorg=0x%02X data=% X sender=%s dest=%s status=0x%02X subtel=%d dbm=%d sec=%d",
		t.RORG, t.Payload, FormatID(t.SenderID), FormatID(t.DestinationID),
		t.Status, t.SubTelegramCount, t.DBm, t.SecurityLevel)
}
