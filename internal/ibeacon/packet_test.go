package ibeacon

import (
	"bytes"
	"testing"
)

func testIdentity(t *testing.T) Identity {
	t.Helper()
	u, err := ParseUUID("FDA50693-A4E2-4FB1-AFCF-C6EB07647825")
	if err != nil {
		t.Fatalf("ParseUUID() error = %v", err)
	}
	return Identity{ProximityUUID: u, Major: 100, Minor: 15, MeasuredPower: -59}
}

func TestEncodeRoundTrip(t *testing.T) {
	tests := []struct {
		name         string
		major, minor uint16
		power        int8
	}{
		{name: "defaults", major: 100, minor: 15, power: -59},
		{name: "zero values", major: 0, minor: 0, power: 0},
		{name: "max values", major: 0xFFFF, minor: 0xFFFF, power: -128},
		{name: "asymmetric", major: 1, minor: 65534, power: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := testIdentity(t)
			id.Major = tt.major
			id.Minor = tt.minor
			id.MeasuredPower = tt.power

			pkt := Encode(id)
			if len(pkt) != PacketLen {
				t.Fatalf("Encode() length = %d, want %d", len(pkt), PacketLen)
			}
			if !Recognize(pkt) {
				t.Fatal("Recognize(Encode()) = false, want true")
			}
			if !RecognizeStrict(pkt) {
				t.Fatal("RecognizeStrict(Encode()) = false, want true")
			}
			if got := Decode(pkt); got != id {
				t.Errorf("Decode(Encode()) = %+v, want %+v", got, id)
			}
		})
	}
}

func TestEncodeBigEndianPlacement(t *testing.T) {
	id := testIdentity(t)
	id.Major = 0x1234
	id.Minor = 0xABCD

	pkt := Encode(id)
	if pkt[majorOffset] != 0x12 || pkt[majorOffset+1] != 0x34 {
		t.Errorf("major bytes = %02X %02X, want 12 34", pkt[majorOffset], pkt[majorOffset+1])
	}
	if pkt[minorOffset] != 0xAB || pkt[minorOffset+1] != 0xCD {
		t.Errorf("minor bytes = %02X %02X, want AB CD", pkt[minorOffset], pkt[minorOffset+1])
	}
}

func TestEncodeHeaderConstant(t *testing.T) {
	a := Encode(testIdentity(t))
	b := Encode(Identity{Major: 9, Minor: 9})
	if !bytes.Equal(a[:HeaderLen], b[:HeaderLen]) {
		t.Error("header bytes differ between packets")
	}
	want := []byte{0x02, 0x01, 0x06, 0x1A, 0xFF, 0x4C, 0x00, 0x02, 0x15}
	if !bytes.Equal(a[:HeaderLen], want) {
		t.Errorf("header = % X, want % X", a[:HeaderLen], want)
	}
}

func TestRecognizeRejectsMalformed(t *testing.T) {
	valid := Encode(testIdentity(t))

	tests := []struct {
		name    string
		payload []byte
	}{
		{name: "nil"},
		{name: "empty", payload: []byte{}},
		{name: "shorter than header", payload: valid[:4]},
		{name: "one byte short", payload: valid[:PacketLen-1]},
		{name: "one byte long", payload: append(append([]byte{}, valid...), 0x00)},
		{
			name: "wrong company id",
			payload: func() []byte {
				p := append([]byte{}, valid...)
				p[5], p[6] = 0xFF, 0xFF
				return p
			}(),
		},
		{
			name: "wrong beacon type marker",
			payload: func() []byte {
				p := append([]byte{}, valid...)
				p[7], p[8] = 0x00, 0x00
				return p
			}(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if Recognize(tt.payload) {
				t.Error("Recognize() = true, want false")
			}
			if RecognizeStrict(tt.payload) {
				t.Error("RecognizeStrict() = true, want false")
			}
		})
	}
}

func TestRecognizeStrictFlags(t *testing.T) {
	pkt := Encode(testIdentity(t))
	pkt[2] = 0x04 // BR/EDR-only flags, not the transmit-time mode

	if !Recognize(pkt) {
		t.Error("Recognize() = false, want true for altered flags")
	}
	if RecognizeStrict(pkt) {
		t.Error("RecognizeStrict() = true, want false for altered flags")
	}
}

func TestManufacturerDataRoundTrip(t *testing.T) {
	id := testIdentity(t)
	pkt := Encode(id)

	data := ManufacturerData(pkt)
	if len(data) != PacketLen-HeaderLen+2 {
		t.Fatalf("ManufacturerData() length = %d", len(data))
	}

	rebuilt, ok := FromManufacturerData(CompanyID, data)
	if !ok {
		t.Fatal("FromManufacturerData() ok = false")
	}
	if got := Decode(rebuilt); got != id {
		t.Errorf("rebuilt identity = %+v, want %+v", got, id)
	}

	if _, ok := FromManufacturerData(0x0059, data); ok {
		t.Error("FromManufacturerData() accepted a foreign company id")
	}
	if _, ok := FromManufacturerData(CompanyID, data[:5]); ok {
		t.Error("FromManufacturerData() accepted truncated data")
	}
}

func TestParseUUIDRejectsMalformed(t *testing.T) {
	if _, err := ParseUUID("not-a-uuid"); err == nil {
		t.Error("ParseUUID() error = nil, want error")
	}
}
