package eep

import (
	"encoding/json"
	"testing"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		name          string
		rorg, fn, typ string
		want          ProfileKey
	}{
		{"4bs decimal", "165", "16", "3", ProfileKey{0xA5, 0x10, 0x03}},
		{"4bs hex", "0xA5", "0x10", "0x06", ProfileKey{0xA5, 0x10, 0x06}},
		{"rps absent", "246", "", "", KeyRocker},
		{"rps ff", "246", "255", "255", KeyRocker},
		{"1bs absent", "213", "", "", KeyContact},
		{"unknown rorg absent", "153", "", "", ProfileKey{0x99, 0xFF, 0xFF}},
		{"rps explicit", "246", "2", "4", ProfileKey{0xF6, 0x02, 0x04}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.rorg, tt.fn, tt.typ)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("ParseKey = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseKeyInvalid(t *testing.T) {
	for _, in := range [][3]string{{"", "", ""}, {"abc", "", ""}, {"165", "256", "3"}, {"165", "16", "x"}} {
		if _, err := ParseKey(in[0], in[1], in[2]); err == nil {
			t.Errorf("ParseKey(%q) should fail", in)
		}
	}
}

func TestParseDeviceType(t *testing.T) {
	k, err := ParseDeviceType("a5-10-06")
	if err != nil {
		t.Fatal(err)
	}
	if k != (ProfileKey{0xA5, 0x10, 0x06}) {
		t.Errorf("key = %s", k)
	}
	if k.String() != "A5-10-06" {
		t.Errorf("String = %q", k.String())
	}
	for _, bad := range []string{"", "A5-10", "A5-10-0G", "A5-100-01"} {
		if _, err := ParseDeviceType(bad); err == nil {
			t.Errorf("ParseDeviceType(%q) should fail", bad)
		}
	}
}

func TestThingUIDAndLabel(t *testing.T) {
	if got := KeyRocker.ThingUID("fef36a01"); got != "enocean:f6-02-01:FEF36A01" {
		t.Errorf("ThingUID = %q", got)
	}
	if got := KeyRocker.Label(); got != "EnOcean F6-02-01" {
		t.Errorf("Label = %q", got)
	}
}

func TestProfileKeyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		P ProfileKey `json:"p"`
	}{KeyContact})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"p":"D5-00-01"}` {
		t.Errorf("json = %s", data)
	}
	var out struct {
		P ProfileKey `json:"p"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.P != KeyContact {
		t.Errorf("unmarshal = %s", out.P)
	}
}
