// Package psn encodes and decodes PosiStageNet v2 packets.
//
// A PSN packet is a tree of chunks. Every chunk starts with a little-endian
// uint32 header packing a 16-bit id, a 15-bit payload length, and a flag that
// marks the payload as a list of child chunks. Data packets carry tracker
// positions at the stream rate; info packets carry the system and tracker
// names at a slower rate.
package psn

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Chunk ids used by the relay.
const (
	DataPacketID  uint16 = 0x6755
	InfoPacketID  uint16 = 0x6756
	packetHeader  uint16 = 0x0000
	dataTrackers  uint16 = 0x0001
	trackerPos    uint16 = 0x0000
	infoSystem    uint16 = 0x0001
	infoTrackers  uint16 = 0x0002
	infoTrackName uint16 = 0x0000
)

const (
	// VersionHigh and VersionLow identify protocol v2.0.
	VersionHigh = 2
	VersionLow  = 0

	chunkHeaderLen  = 4
	packetHeaderLen = 12
	posLen          = 12
	maxChunkData    = 0x7fff
)

// MaxPacketSize is the largest packet whose root chunk length fits in 15 bits.
const MaxPacketSize = maxChunkData + chunkHeaderLen

// ErrMalformed is returned by Decode for packets that do not parse.
var ErrMalformed = errors.New("malformed psn packet")

type chunkHeader struct {
	id          uint16
	length      uint16
	hasChildren bool
}

func (h chunkHeader) encode() uint32 {
	v := uint32(h.id) | uint32(h.length&maxChunkData)<<16
	if h.hasChildren {
		v |= 1 << 31
	}
	return v
}

func decodeChunkHeader(v uint32) chunkHeader {
	return chunkHeader{
		id:          uint16(v),
		length:      uint16(v>>16) & maxChunkData,
		hasChildren: v>>31 == 1,
	}
}

// appendChunk writes a chunk header followed by payload.
func appendChunk(dst []byte, id uint16, hasChildren bool, payload []byte) ([]byte, error) {
	if len(payload) > maxChunkData {
		return dst, fmt.Errorf("psn chunk 0x%04x: payload of %d bytes exceeds %d", id, len(payload), maxChunkData)
	}
	h := chunkHeader{id: id, length: uint16(len(payload)), hasChildren: hasChildren}
	dst = binary.LittleEndian.AppendUint32(dst, h.encode())
	return append(dst, payload...), nil
}

// Header is the common packet header carried by data and info packets.
type Header struct {
	// Timestamp is the sender clock at encode time. The relay sends
	// milliseconds elapsed since it started.
	Timestamp        uint64
	VersionHigh      uint8
	VersionLow       uint8
	FrameID          uint8
	FramePacketCount uint8
}

func (h Header) appendTo(dst []byte) []byte {
	dst = binary.LittleEndian.AppendUint64(dst, h.Timestamp)
	return append(dst, h.VersionHigh, h.VersionLow, h.FrameID, h.FramePacketCount)
}

// Vec3 is a position in scene meters.
type Vec3 struct {
	X, Y, Z float32
}

// Tracker is one entry of a data or info packet.
type Tracker struct {
	ID   uint16
	Name string
	Pos  Vec3
}
