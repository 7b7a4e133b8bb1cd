package psn

import (
	"encoding/binary"
	"fmt"
	"math"
)

// DefaultMaxPacketSize keeps datagrams under a typical Ethernet MTU.
const DefaultMaxPacketSize = 1500

const (
	// root header, packet header chunk, and tracker list header
	packetOverhead = chunkHeaderLen + chunkHeaderLen + packetHeaderLen + chunkHeaderLen
	dataTrackerLen = chunkHeaderLen + chunkHeaderLen + posLen
)

// Encoder turns tracker sets into PSN packets. Data and info streams keep
// separate frame counters. An Encoder is not safe for concurrent use.
type Encoder struct {
	systemName    string
	maxPacketSize int
	dataFrame     uint8
	infoFrame     uint8
}

// NewEncoder returns an encoder that splits frames into packets of at most
// maxPacketSize bytes. Zero selects DefaultMaxPacketSize.
func NewEncoder(systemName string, maxPacketSize int) (*Encoder, error) {
	if maxPacketSize == 0 {
		maxPacketSize = DefaultMaxPacketSize
	}
	if maxPacketSize < packetOverhead+dataTrackerLen || maxPacketSize > MaxPacketSize {
		return nil, fmt.Errorf("psn max packet size %d out of range [%d, %d]", maxPacketSize, packetOverhead+dataTrackerLen, MaxPacketSize)
	}
	if len(systemName) > maxPacketSize-packetOverhead-chunkHeaderLen {
		return nil, fmt.Errorf("psn system name of %d bytes does not fit in a packet", len(systemName))
	}
	return &Encoder{systemName: systemName, maxPacketSize: maxPacketSize}, nil
}

// SystemName returns the name sent in info packets.
func (e *Encoder) SystemName() string { return e.systemName }

// EncodeData returns the data packets for one frame. An empty tracker set
// still yields one packet so receivers keep seeing the clock advance.
func (e *Encoder) EncodeData(trackers []Tracker, timestamp uint64) ([][]byte, error) {
	groups := split(trackers, e.maxPacketSize-packetOverhead, func(Tracker) int { return dataTrackerLen })
	if len(groups) > math.MaxUint8 {
		return nil, fmt.Errorf("psn data frame needs %d packets, limit is %d", len(groups), math.MaxUint8)
	}
	frame := e.dataFrame
	e.dataFrame++

	packets := make([][]byte, 0, len(groups))
	for _, group := range groups {
		var list []byte
		for _, t := range group {
			pos := make([]byte, 0, posLen)
			pos = binary.LittleEndian.AppendUint32(pos, math.Float32bits(t.Pos.X))
			pos = binary.LittleEndian.AppendUint32(pos, math.Float32bits(t.Pos.Y))
			pos = binary.LittleEndian.AppendUint32(pos, math.Float32bits(t.Pos.Z))
			posChunk, err := appendChunk(nil, trackerPos, false, pos)
			if err != nil {
				return nil, err
			}
			if list, err = appendChunk(list, t.ID, true, posChunk); err != nil {
				return nil, err
			}
		}
		packet, err := e.packet(DataPacketID, dataTrackers, nil, list, Header{
			Timestamp:        timestamp,
			VersionHigh:      VersionHigh,
			VersionLow:       VersionLow,
			FrameID:          frame,
			FramePacketCount: uint8(len(groups)),
		})
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}
	return packets, nil
}

// EncodeInfo returns the info packets naming the system and each tracker.
// Trackers without a name are sent as "Tracker <id>".
func (e *Encoder) EncodeInfo(trackers []Tracker, timestamp uint64) ([][]byte, error) {
	named := make([]Tracker, len(trackers))
	for i, t := range trackers {
		if t.Name == "" {
			t.Name = DefaultTrackerName(int(t.ID))
		}
		named[i] = t
	}
	budget := e.maxPacketSize - packetOverhead - chunkHeaderLen - len(e.systemName)
	for _, t := range named {
		if infoTrackerLen(t) > budget {
			return nil, fmt.Errorf("psn tracker %d name of %d bytes does not fit in a packet", t.ID, len(t.Name))
		}
	}
	groups := split(named, budget, infoTrackerLen)
	if len(groups) > math.MaxUint8 {
		return nil, fmt.Errorf("psn info frame needs %d packets, limit is %d", len(groups), math.MaxUint8)
	}
	frame := e.infoFrame
	e.infoFrame++

	system, err := appendChunk(nil, infoSystem, false, []byte(e.systemName))
	if err != nil {
		return nil, err
	}
	packets := make([][]byte, 0, len(groups))
	for _, group := range groups {
		var list []byte
		for _, t := range group {
			name, err := appendChunk(nil, infoTrackName, false, []byte(t.Name))
			if err != nil {
				return nil, err
			}
			if list, err = appendChunk(list, t.ID, true, name); err != nil {
				return nil, err
			}
		}
		packet, err := e.packet(InfoPacketID, infoTrackers, system, list, Header{
			Timestamp:        timestamp,
			VersionHigh:      VersionHigh,
			VersionLow:       VersionLow,
			FrameID:          frame,
			FramePacketCount: uint8(len(groups)),
		})
		if err != nil {
			return nil, err
		}
		packets = append(packets, packet)
	}
	return packets, nil
}

// DefaultTrackerName is the display name used for trackers in info packets.
func DefaultTrackerName(id int) string {
	return fmt.Sprintf("Tracker %d", id)
}

func (e *Encoder) packet(rootID, listID uint16, prefix, list []byte, h Header) ([]byte, error) {
	body, err := appendChunk(make([]byte, 0, e.maxPacketSize), packetHeader, false, h.appendTo(nil))
	if err != nil {
		return nil, err
	}
	body = append(body, prefix...)
	if body, err = appendChunk(body, listID, true, list); err != nil {
		return nil, err
	}
	return appendChunk(make([]byte, 0, len(body)+chunkHeaderLen), rootID, true, body)
}

func infoTrackerLen(t Tracker) int {
	return chunkHeaderLen + chunkHeaderLen + len(t.Name)
}

// split groups trackers so each group's encoded size stays within budget.
func split(trackers []Tracker, budget int, size func(Tracker) int) [][]Tracker {
	if len(trackers) == 0 {
		return [][]Tracker{nil}
	}
	var (
		groups [][]Tracker
		cur    []Tracker
		used   int
	)
	for _, t := range trackers {
		n := size(t)
		if len(cur) > 0 && used+n > budget {
			groups = append(groups, cur)
			cur, used = nil, 0
		}
		cur = append(cur, t)
		used += n
	}
	return append(groups, cur)
}
