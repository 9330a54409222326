// Package ibeacon implements the fixed-format proximity advertising packet
// described in Apple's Proximity Beacon Specification.
//
// Layout: Flags(3) | Length(1) | Type(1) | CompanyID(2, LE) | BeaconType(2) |
// UUID(16) | Major(2, BE) | Minor(2, BE) | MeasuredPower(1)
// Total size is a fixed 30 bytes.
package ibeacon

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
)

const (
	// HeaderLen is the size of the constant packet header.
	HeaderLen = 9
	// PacketLen is the total size of an advertising packet.
	PacketLen = 30

	// CompanyID is the Bluetooth SIG identifier assigned to Apple Inc.
	CompanyID uint16 = 0x004C

	uuidOffset  = HeaderLen
	majorOffset = uuidOffset + 16
	minorOffset = majorOffset + 2
	powerOffset = minorOffset + 2
)

// header is the constant leading segment of every packet: advertising flags
// (general discoverable, BR/EDR not supported), manufacturer-specific data
// length and type markers, company identifier (little-endian on the wire),
// and the proximity-beacon type marker.
var header = [HeaderLen]byte{0x02, 0x01, 0x06, 0x1A, 0xFF, 0x4C, 0x00, 0x02, 0x15}

// flagsLen is the size of the advertising-flags segment at the front of the
// header. Base Recognize skips it so scan responses stripped of flags by the
// host stack still match; strict mode compares it too.
const flagsLen = 3

// Identity is the tuple broadcast by a beacon. Major and minor are held
// host-endian and converted only at the encode/decode boundary. An Identity is
// replaced wholesale on reconfiguration, never field-mutated mid-cycle.
type Identity struct {
	ProximityUUID [16]byte
	Major         uint16
	Minor         uint16
	MeasuredPower int8
}

// ParseUUID converts a canonical 36-character hyphenated UUID string into the
// 16-byte wire form.
func ParseUUID(s string) ([16]byte, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return [16]byte{}, fmt.Errorf("parse proximity uuid: %w", err)
	}
	return u, nil
}

// UUIDString renders the identity's proximity UUID in canonical hyphenated form.
func (id Identity) UUIDString() string {
	return uuid.UUID(id.ProximityUUID).String()
}

// Encode produces the full advertising packet for an identity. Major and minor
// are written big-endian regardless of host byte order.
func Encode(id Identity) []byte {
	pkt := make([]byte, PacketLen)
	copy(pkt, header[:])
	copy(pkt[uuidOffset:], id.ProximityUUID[:])
	binary.BigEndian.PutUint16(pkt[majorOffset:], id.Major)
	binary.BigEndian.PutUint16(pkt[minorOffset:], id.Minor)
	pkt[powerOffset] = byte(id.MeasuredPower)
	return pkt
}

// Recognize reports whether a raw advertising payload is a proximity beacon
// packet. The length is checked before any byte comparison, so short or empty
// payloads are rejected without reading out of bounds. The advertising-flags
// segment is not compared; use RecognizeStrict when the transmit-time flags
// must match too.
func Recognize(payload []byte) bool {
	if len(payload) != PacketLen {
		return false
	}
	for i := flagsLen; i < HeaderLen; i++ {
		if payload[i] != header[i] {
			return false
		}
	}
	return true
}

// RecognizeStrict is Recognize plus a byte-for-byte match of the
// advertising-flags segment (non-connectable, general-discoverable mode).
func RecognizeStrict(payload []byte) bool {
	if !Recognize(payload) {
		return false
	}
	for i := 0; i < flagsLen; i++ {
		if payload[i] != header[i] {
			return false
		}
	}
	return true
}

// Decode extracts the identity from a payload that has already passed
// Recognize. Calling it on an unrecognized payload of the wrong length will
// panic; Recognize is the guard.
func Decode(payload []byte) Identity {
	var id Identity
	copy(id.ProximityUUID[:], payload[uuidOffset:majorOffset])
	id.Major = binary.BigEndian.Uint16(payload[majorOffset:])
	id.Minor = binary.BigEndian.Uint16(payload[minorOffset:])
	id.MeasuredPower = int8(payload[powerOffset])
	return id
}

// ManufacturerData returns the manufacturer-specific portion of an encoded
// packet (beacon type marker onward) for stacks that frame the company
// identifier themselves.
func ManufacturerData(pkt []byte) []byte {
	return pkt[HeaderLen-2:]
}

// FromManufacturerData rebuilds a full advertising packet from a company
// identifier and the manufacturer-specific data reported by a scanning stack.
// It returns false when the company or framing does not match.
func FromManufacturerData(companyID uint16, data []byte) ([]byte, bool) {
	if companyID != CompanyID || len(data) != PacketLen-HeaderLen+2 {
		return nil, false
	}
	pkt := make([]byte, 0, PacketLen)
	pkt = append(pkt, header[:HeaderLen-2]...)
	pkt = append(pkt, data...)
	if !Recognize(pkt) {
		return nil, false
	}
	return pkt, true
}
