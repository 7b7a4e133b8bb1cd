package psn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Packet is a decoded data or info packet. Info packets fill Name and
// SystemName; data packets fill Pos.
type Packet struct {
	ID         uint16
	Header     Header
	SystemName string
	Trackers   []Tracker
}

// IsData reports whether p carries positions.
func (p Packet) IsData() bool { return p.ID == DataPacketID }

// Decode parses a single PSN datagram. Unknown child chunks are skipped so
// packets from richer senders (speed, orientation) still decode.
func Decode(packet []byte) (Packet, error) {
	root, body, rest, err := nextChunk(packet)
	if err != nil {
		return Packet{}, err
	}
	if len(rest) != 0 {
		return Packet{}, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(rest))
	}
	if root.id != DataPacketID && root.id != InfoPacketID {
		return Packet{}, fmt.Errorf("%w: unknown packet id 0x%04x", ErrMalformed, root.id)
	}
	if !root.hasChildren {
		return Packet{}, fmt.Errorf("%w: packet 0x%04x has no children", ErrMalformed, root.id)
	}

	out := Packet{ID: root.id}
	seenHeader := false
	err = eachChild(body, func(h chunkHeader, payload []byte) error {
		switch {
		case h.id == packetHeader:
			if len(payload) != packetHeaderLen {
				return fmt.Errorf("%w: packet header is %d bytes", ErrMalformed, len(payload))
			}
			out.Header = Header{
				Timestamp:        binary.LittleEndian.Uint64(payload),
				VersionHigh:      payload[8],
				VersionLow:       payload[9],
				FrameID:          payload[10],
				FramePacketCount: payload[11],
			}
			seenHeader = true
		case root.id == DataPacketID && h.id == dataTrackers:
			return eachChild(payload, func(th chunkHeader, tp []byte) error {
				t := Tracker{ID: th.id}
				err := eachChild(tp, func(fh chunkHeader, fp []byte) error {
					if fh.id != trackerPos {
						return nil
					}
					if len(fp) != posLen {
						return fmt.Errorf("%w: tracker %d position is %d bytes", ErrMalformed, th.id, len(fp))
					}
					t.Pos = Vec3{
						X: math.Float32frombits(binary.LittleEndian.Uint32(fp[0:])),
						Y: math.Float32frombits(binary.LittleEndian.Uint32(fp[4:])),
						Z: math.Float32frombits(binary.LittleEndian.Uint32(fp[8:])),
					}
					return nil
				})
				out.Trackers = append(out.Trackers, t)
				return err
			})
		case root.id == InfoPacketID && h.id == infoSystem:
			out.SystemName = string(payload)
		case root.id == InfoPacketID && h.id == infoTrackers:
			return eachChild(payload, func(th chunkHeader, tp []byte) error {
				t := Tracker{ID: th.id}
				err := eachChild(tp, func(fh chunkHeader, fp []byte) error {
					if fh.id == infoTrackName {
						t.Name = string(fp)
					}
					return nil
				})
				out.Trackers = append(out.Trackers, t)
				return err
			})
		}
		return nil
	})
	if err != nil {
		return Packet{}, err
	}
	if !seenHeader {
		return Packet{}, fmt.Errorf("%w: missing packet header", ErrMalformed)
	}
	return out, nil
}

func nextChunk(buf []byte) (chunkHeader, []byte, []byte, error) {
	if len(buf) < chunkHeaderLen {
		return chunkHeader{}, nil, nil, fmt.Errorf("%w: chunk header truncated", ErrMalformed)
	}
	h := decodeChunkHeader(binary.LittleEndian.Uint32(buf))
	end := chunkHeaderLen + int(h.length)
	if end > len(buf) {
		return chunkHeader{}, nil, nil, fmt.Errorf("%w: chunk 0x%04x claims %d bytes, %d available", ErrMalformed, h.id, h.length, len(buf)-chunkHeaderLen)
	}
	return h, buf[chunkHeaderLen:end], buf[end:], nil
}

func eachChild(buf []byte, fn func(chunkHeader, []byte) error) error {
	for len(buf) > 0 {
		h, payload, rest, err := nextChunk(buf)
		if err != nil {
			return err
		}
		if err := fn(h, payload); err != nil {
			return err
		}
		buf = rest
	}
	return nil
}
