package osc_test

import (
	"bytes"
	"errors"
	"testing"

	"psnrelay/internal/osc"
)

func mustMessage(t *testing.T, address string, args ...any) []byte {
	t.Helper()
	packet, err := osc.AppendMessage(nil, address, args...)
	if err != nil {
		t.Fatalf("AppendMessage returned error: %v", err)
	}
	return packet
}

func TestParseMessageNumericArguments(t *testing.T) {
	packet := mustMessage(t, "/Tracker/2", float32(1.5), 2.25, int32(-3), int64(4))
	if len(packet)%4 != 0 {
		t.Fatalf("packet length %d not 4-byte aligned", len(packet))
	}
	msgs, err := osc.Parse(packet)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Address != "/Tracker/2" {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
	values, err := msgs[0].Float64s()
	if err != nil {
		t.Fatalf("Float64s returned error: %v", err)
	}
	want := []float64{1.5, 2.25, -3, 4}
	for i := range want {
		if values[i] != want[i] {
			t.Fatalf("value %d: got %v want %v", i, values[i], want[i])
		}
	}
}

func TestParseKnownWireBytes(t *testing.T) {
	// "/t" padded, ",f" padded, 1.0f big endian.
	packet := []byte{'/', 't', 0, 0, ',', 'f', 0, 0, 0x3f, 0x80, 0, 0}
	msgs, err := osc.Parse(packet)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if got := msgs[0].Args[0]; got != float32(1) {
		t.Fatalf("expected float32(1), got %#v", got)
	}
	if encoded := mustMessage(t, "/t", float32(1)); !bytes.Equal(encoded, packet) {
		t.Fatalf("encoder mismatch: % x", encoded)
	}
}

func TestParseNestedBundleFlattensInOrder(t *testing.T) {
	a := mustMessage(t, "/Tracker/0", 1.0, 2.0, 3.0)
	b := mustMessage(t, "/Tracker/1", 4.0, 5.0, 6.0)
	c := mustMessage(t, "/Tracker/2", "label", []byte{1, 2, 3}, true, nil)
	inner := osc.AppendBundle(nil, osc.ImmediateTimetag, b, c)
	outer := osc.AppendBundle(nil, osc.ImmediateTimetag, a, inner)

	msgs, err := osc.Parse(outer)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(msgs))
	}
	for i, want := range []string{"/Tracker/0", "/Tracker/1", "/Tracker/2"} {
		if msgs[i].Address != want {
			t.Fatalf("message %d: got %q want %q", i, msgs[i].Address, want)
		}
	}
	args := msgs[2].Args
	if args[0] != "label" || !bytes.Equal(args[1].([]byte), []byte{1, 2, 3}) || args[2] != true || args[3] != nil {
		t.Fatalf("unexpected mixed args: %#v", args)
	}
	if _, err := msgs[2].Float64s(); !errors.Is(err, osc.ErrMalformed) {
		t.Fatalf("expected ErrMalformed for non-numeric args, got %v", err)
	}
}

func TestParseMessageWithoutTypeTags(t *testing.T) {
	msgs, err := osc.Parse([]byte{'/', 'p', 'i', 'n', 'g', 0, 0, 0})
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if msgs[0].Address != "/ping" || len(msgs[0].Args) != 0 {
		t.Fatalf("unexpected message: %+v", msgs[0])
	}
}

func TestParseRejectsMalformedPackets(t *testing.T) {
	valid := mustMessage(t, "/Tracker/1", 1.0, 2.0, 3.0)
	cases := map[string][]byte{
		"empty":            nil,
		"garbage":          []byte("hello world"),
		"unterminated":     []byte("/Tracker"),
		"truncated arg":    valid[:len(valid)-4],
		"missing comma":    []byte{'/', 'a', 0, 0, 'f', 0, 0, 0, 0, 0, 0, 0},
		"unknown tag":      []byte{'/', 'a', 0, 0, ',', 'x', 0, 0},
		"bad bundle tag":   append([]byte("#bundlx\x00"), make([]byte, 8)...),
		"short timetag":    []byte("#bundle\x00\x00\x00"),
		"oversize element": append(osc.AppendBundle(nil, 1), 0, 0, 1, 0),
	}
	for name, packet := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := osc.Parse(packet); !errors.Is(err, osc.ErrMalformed) {
				t.Fatalf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestParseRejectsDeepBundles(t *testing.T) {
	packet := mustMessage(t, "/x", int32(1))
	for i := 0; i < 12; i++ {
		packet = osc.AppendBundle(nil, osc.ImmediateTimetag, packet)
	}
	if _, err := osc.Parse(packet); !errors.Is(err, osc.ErrMalformed) {
		t.Fatalf("expected depth limit error, got %v", err)
	}
}

func TestAppendMessageRejectsBadInput(t *testing.T) {
	if _, err := osc.AppendMessage(nil, "Tracker", 1.0); err == nil {
		t.Fatal("expected error for address without slash")
	}
	if _, err := osc.AppendMessage(nil, "/a", struct{}{}); err == nil {
		t.Fatal("expected error for unsupported argument")
	}
}
