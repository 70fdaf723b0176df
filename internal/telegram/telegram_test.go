package telegram

import (
	"bytes"
	"errors"
	"testing"
)

func TestDecodeRPS(t *testing.T) {
	raw := []byte{0xF6, 0x10, 0xFE, 0xF3, 0x6A, 0x01, 0x30, 0x01, 0xFF, 0xFF, 0xFF, 0xFF, 0xC5, 0x00}
	tg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if tg.RORG != RORGRPS {
		t.Errorf("rorg = 0x%02X, want 0xF6", tg.RORG)
	}
	if !bytes.Equal(tg.Payload, []byte{0x10}) {
		t.Errorf("payload = % X, want 10", tg.Payload)
	}
	if tg.SenderID != 0xFEF36A01 {
		t.Errorf("sender = %08X, want FEF36A01", tg.SenderID)
	}
	if tg.Status != 0x30 {
		t.Errorf("status = 0x%02X, want 0x30", tg.Status)
	}
	if tg.SubTelegramCount != 1 {
		t.Errorf("subtel = %d, want 1", tg.SubTelegramCount)
	}
	if tg.DestinationID != 0xFFFFFFFF {
		t.Errorf("dest = %08X, want FFFFFFFF", tg.DestinationID)
	}
	if tg.DBm != -59 {
		t.Errorf("dbm = %d, want -59", tg.DBm)
	}
}

func TestDecode4BS(t *testing.T) {
	raw := []byte{0xA5, 0x00, 0x80, 0x66, 0x09, 0x01, 0x82, 0x3C, 0x2B, 0x00, 0x01, 0x00, 0x01, 0x00, 0x00, 0xB0, 0x00}
	tg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tg.Payload, []byte{0x00, 0x80, 0x66, 0x09}) {
		t.Errorf("payload = % X", tg.Payload)
	}
	if tg.SenderID != 0x01823C2B {
		t.Errorf("sender = %08X, want 01823C2B", tg.SenderID)
	}
	if tg.DestinationID != 0x00010000 {
		t.Errorf("dest = %08X, want 00010000", tg.DestinationID)
	}
	if tg.DBm != -80 {
		t.Errorf("dbm = %d, want -80", tg.DBm)
	}
}

func TestDecodeLengthMismatch(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
	}{
		{"empty", nil},
		{"short", []byte{0xF6, 0x10, 0x00}},
		{"rps one byte short", make13(0xF6, 0)},
		{"rps one byte long", make13(0xF6, 2)},
		{"4bs short", make13(0xA5, 3)},
		{"4bs long", make13(0xA5, 5)},
		{"1bs empty payload", make13(0xD5, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(tt.raw)
			if !errors.Is(err, ErrMalformedTelegram) {
				t.Errorf("err = %v, want ErrMalformedTelegram", err)
			}
		})
	}
}

// make13 builds a zeroed telegram with n payload bytes.
func make13(rorg byte, n int) []byte {
	raw := make([]byte, Overhead+n)
	raw[0] = rorg
	return raw
}

func TestDecodeUnknownRORGInfersPayload(t *testing.T) {
	raw := make13(0x99, 3)
	raw[1], raw[2], raw[3] = 1, 2, 3
	tg, err := Decode(raw)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(tg.Payload, []byte{1, 2, 3}) {
		t.Errorf("payload = % X, want 01 02 03", tg.Payload)
	}
}

func TestEncodeLayout(t *testing.T) {
	tg := New(RORGRPS, []byte{0x70}, 0xFFD3A801)
	raw, err := tg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	want := []byte{0xF6, 0x70, 0xFF, 0xD3, 0xA8, 0x01, 0x00, 0x01, 0x00, 0xFF, 0xFF, 0xFF, 0x00, 0x00}
	if !bytes.Equal(raw, want) {
		t.Errorf("encode = % X\nwant     % X", raw, want)
	}
}

func TestEncodeShortIDsAreZeroPadded(t *testing.T) {
	tg := New(RORG1BS, []byte{0x09}, 0xAB)
	tg.DestinationID = 0x1
	raw, err := tg.Encode()
	if err != nil {
		t.Fatal(err)
	}
	if len(raw) != Overhead+1 {
		t.Fatalf("len = %d, want %d", len(raw), Overhead+1)
	}
	if !bytes.Equal(raw[2:6], []byte{0, 0, 0, 0xAB}) {
		t.Errorf("sender bytes = % X, want 00 00 00 AB", raw[2:6])
	}
	if !bytes.Equal(raw[8:12], []byte{0, 0, 0, 1}) {
		t.Errorf("destination bytes = % X, want 00 00 00 01", raw[8:12])
	}
}

func TestEncodeRejectsWrongPayload(t *testing.T) {
	tg := New(RORG4BS, []byte{1, 2}, 1)
	if _, err := tg.Encode(); !errors.Is(err, ErrMalformedTelegram) {
		t.Errorf("err = %v, want ErrMalformedTelegram", err)
	}
}

// rorgVLD is a variable length RORG; the codec infers its payload length.
const rorgVLD byte = 0xD2

func TestRoundTrip(t *testing.T) {
	tests := []Telegram{
		New(RORGRPS, []byte{0x10}, 0xFFD3A801),
		New(RORG1BS, []byte{0x08}, 0x00000001),
		{RORG: RORG4BS, Payload: []byte{0x00, 0xFF, 0x00, 0x09}, SenderID: 0x0000AB, DestinationID: 0, Status: 0x80, SubTelegramCount: 3, DBm: -128, SecurityLevel: 2},
		{RORG: RORG4BS, Payload: []byte{0xFF, 0x7F, 0x80, 0x01}, SenderID: 0xFFFFFFFF, DestinationID: 0xFFFFFFFF, Status: 0xFF, SubTelegramCount: 0xFF, DBm: 127, SecurityLevel: 0xFF},
		{RORG: rorgVLD, Payload: []byte{0x01, 0x02, 0x03, 0x04, 0x05, 0x06}, SenderID: 0x1234, DestinationID: BroadcastID, SubTelegramCount: 1},
	}
	for _, tg := range tests {
		raw, err := tg.Encode()
		if err != nil {
			t.Fatalf("encode %v: %v", tg, err)
		}
		got, err := Decode(raw)
		if err != nil {
			t.Fatalf("decode %v: %v", tg, err)
		}
		if !got.Equal(tg) {
			t.Errorf("round trip:\n got  %v\n want %v", got, tg)
		}
	}
}

func TestNewDefaults(t *testing.T) {
	payload := []byte{0x50}
	tg := New(RORGRPS, payload, 7)
	payload[0] = 0
	if tg.Payload[0] != 0x50 {
		t.Error("New must copy the payload")
	}
	if tg.DestinationID != BroadcastID || tg.SubTelegramCount != 1 ||
		tg.Status != 0 || tg.DBm != 0 || tg.SecurityLevel != 0 {
		t.Errorf("defaults = %v", tg)
	}
}
