package psn_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"psnrelay/internal/psn"
)

func newEncoder(t *testing.T, max int) *psn.Encoder {
	t.Helper()
	enc, err := psn.NewEncoder("Server 1", max)
	if err != nil {
		t.Fatalf("NewEncoder returned error: %v", err)
	}
	return enc
}

func TestEncodeDataWireLayout(t *testing.T) {
	enc := newEncoder(t, 0)
	packets, err := enc.EncodeData([]psn.Tracker{{ID: 0, Pos: psn.Vec3{X: 0, Y: 3.15, Z: 2}}}, 1000)
	if err != nil {
		t.Fatalf("EncodeData returned error: %v", err)
	}
	if len(packets) != 1 {
		t.Fatalf("expected one packet, got %d", len(packets))
	}
	p := packets[0]
	if len(p) != 44 {
		t.Fatalf("expected 44 byte packet, got %d", len(p))
	}
	wantPrefix := []byte{
		0x55, 0x67, 0x28, 0x80, // data packet, 40 bytes, has children
		0x00, 0x00, 0x0c, 0x00, // packet header chunk, 12 bytes
		0xe8, 0x03, 0, 0, 0, 0, 0, 0, // timestamp 1000
		0x02, 0x00, 0x00, 0x01, // v2.0, frame 0, 1 packet
		0x01, 0x00, 0x14, 0x80, // tracker list, 20 bytes, has children
		0x00, 0x00, 0x10, 0x80, // tracker 0, 16 bytes, has children
		0x00, 0x00, 0x0c, 0x00, // position, 12 bytes
	}
	if !bytes.Equal(p[:len(wantPrefix)], wantPrefix) {
		t.Fatalf("unexpected header bytes:\n got % x\nwant % x", p[:len(wantPrefix)], wantPrefix)
	}

	decoded, err := psn.Decode(p)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if !decoded.IsData() || decoded.Header.Timestamp != 1000 || len(decoded.Trackers) != 1 {
		t.Fatalf("unexpected decoded packet: %+v", decoded)
	}
	if got := decoded.Trackers[0].Pos; got != (psn.Vec3{X: 0, Y: 3.15, Z: 2}) {
		t.Fatalf("unexpected position: %+v", got)
	}
}

func TestEncodeDataSplitsLargeFrames(t *testing.T) {
	enc := newEncoder(t, 0)
	trackers := make([]psn.Tracker, 200)
	for i := range trackers {
		trackers[i] = psn.Tracker{ID: uint16(i), Pos: psn.Vec3{X: float32(i)}}
	}
	packets, err := enc.EncodeData(trackers, 5)
	if err != nil {
		t.Fatalf("EncodeData returned error: %v", err)
	}
	if len(packets) < 2 {
		t.Fatalf("expected frame to be split, got %d packet(s)", len(packets))
	}
	seen := make(map[uint16]bool)
	for _, p := range packets {
		if len(p) > psn.DefaultMaxPacketSize {
			t.Fatalf("packet of %d bytes exceeds limit", len(p))
		}
		decoded, err := psn.Decode(p)
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if decoded.Header.FramePacketCount != uint8(len(packets)) || decoded.Header.FrameID != 0 {
			t.Fatalf("inconsistent frame header: %+v", decoded.Header)
		}
		for _, tr := range decoded.Trackers {
			seen[tr.ID] = true
			if tr.Pos.X != float32(tr.ID) {
				t.Fatalf("tracker %d decoded with x=%v", tr.ID, tr.Pos.X)
			}
		}
	}
	if len(seen) != len(trackers) {
		t.Fatalf("expected %d trackers across packets, got %d", len(trackers), len(seen))
	}
}

func TestEncodeDataAdvancesFrameID(t *testing.T) {
	enc := newEncoder(t, 0)
	for want := 0; want < 300; want++ {
		packets, err := enc.EncodeData(nil, uint64(want))
		if err != nil {
			t.Fatalf("EncodeData returned error: %v", err)
		}
		decoded, err := psn.Decode(packets[0])
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if decoded.Header.FrameID != uint8(want) {
			t.Fatalf("frame %d: got frame id %d", want, decoded.Header.FrameID)
		}
		if len(decoded.Trackers) != 0 {
			t.Fatalf("expected empty tracker list, got %+v", decoded.Trackers)
		}
	}
}

func TestEncodeInfoNamesTrackers(t *testing.T) {
	enc := newEncoder(t, 0)
	packets, err := enc.EncodeInfo([]psn.Tracker{{ID: 0}, {ID: 7, Name: "Lead"}}, 42)
	if err != nil {
		t.Fatalf("EncodeInfo returned error: %v", err)
	}
	decoded, err := psn.Decode(packets[0])
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	if decoded.IsData() || decoded.ID != psn.InfoPacketID {
		t.Fatalf("expected info packet, got 0x%04x", decoded.ID)
	}
	if decoded.SystemName != "Server 1" {
		t.Fatalf("unexpected system name %q", decoded.SystemName)
	}
	if len(decoded.Trackers) != 2 || decoded.Trackers[0].Name != "Tracker 0" || decoded.Trackers[1].Name != "Lead" {
		t.Fatalf("unexpected tracker names: %+v", decoded.Trackers)
	}
}

func TestEncodeInfoSplitsAndKeepsSystemName(t *testing.T) {
	enc := newEncoder(t, 128)
	trackers := make([]psn.Tracker, 20)
	for i := range trackers {
		trackers[i] = psn.Tracker{ID: uint16(i)}
	}
	packets, err := enc.EncodeInfo(trackers, 0)
	if err != nil {
		t.Fatalf("EncodeInfo returned error: %v", err)
	}
	total := 0
	for _, p := range packets {
		if len(p) > 128 {
			t.Fatalf("packet of %d bytes exceeds limit", len(p))
		}
		decoded, err := psn.Decode(p)
		if err != nil {
			t.Fatalf("Decode returned error: %v", err)
		}
		if decoded.SystemName != "Server 1" {
			t.Fatalf("every info packet should carry the system name")
		}
		total += len(decoded.Trackers)
	}
	if total != len(trackers) {
		t.Fatalf("expected %d names, got %d", len(trackers), total)
	}
}

func TestEncodeInfoRejectsOversizeName(t *testing.T) {
	enc := newEncoder(t, 128)
	if _, err := enc.EncodeInfo([]psn.Tracker{{ID: 1, Name: strings.Repeat("x", 200)}}, 0); err == nil {
		t.Fatal("expected error for name larger than a packet")
	}
}

func TestNewEncoderValidatesLimits(t *testing.T) {
	if _, err := psn.NewEncoder("s", 16); err == nil {
		t.Fatal("expected error for tiny packet size")
	}
	if _, err := psn.NewEncoder("s", psn.MaxPacketSize+1); err == nil {
		t.Fatal("expected error for packet size beyond 15-bit length")
	}
	if _, err := psn.NewEncoder(strings.Repeat("s", 100), 64); err == nil {
		t.Fatal("expected error for system name that cannot fit")
	}
}

func TestDecodeRejectsMalformedPackets(t *testing.T) {
	enc := newEncoder(t, 0)
	packets, err := enc.EncodeData([]psn.Tracker{{ID: 1}}, 1)
	if err != nil {
		t.Fatalf("EncodeData returned error: %v", err)
	}
	good := packets[0]
	cases := map[string][]byte{
		"empty":      nil,
		"truncated":  good[:len(good)-3],
		"trailing":   append(append([]byte(nil), good...), 0),
		"unknown id": {0x00, 0x10, 0x00, 0x80},
		"no header":  {0x55, 0x67, 0x04, 0x80, 0x01, 0x00, 0x00, 0x80},
	}
	for name, packet := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := psn.Decode(packet); !errors.Is(err, psn.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}
