// Package header implements the Ch10 packet framing layer: the fixed
// 24-byte PacketHeader, the optional 12-byte SecondaryHeader, checksum
// verification, and the sync-search/resync state machine (states SeekSync
// → HeaderRead → SecondaryHeaderRead? → ChecksumCheck). Dispatch and
// body-consumption (the remaining states) are driven by internal/ch10/worker,
// which owns the enabled-types map and the component-parser registry this
// package has no knowledge of.
package header

import (
	"errors"

	"github.com/alxayo/ch10parse/internal/ch10/element"
)

const (
	// Size is the fixed on-wire length of a PacketHeader.
	Size = 24
	// SecondaryHeaderSize is the fixed on-wire length of a SecondaryHeader.
	SecondaryHeaderSize = 12
	// SyncPattern is the required little-endian value of header.sync.
	SyncPattern uint16 = 0xEB25
)

// ErrIncompleteTail is returned by SeekSync when the remaining bytes in the
// cursor cannot contain a full header; the cursor is left at the start of
// that partial tail so the caller can report it as last_position.
var ErrIncompleteTail = errors.New("header: incomplete trailing header")

// Flags decodes the packet header's single flags byte.
type Flags struct {
	SecondaryHdr bool
	IptsSrc      uint8 // 0: RTC: 1: secondary-header time
	TsFmt        uint8 // 0: RTC format; 1: IRIG-B day-of-year format
	ChecksumMode ChecksumMode
}

func decodeFlags(b uint8) Flags {
	return Flags{
		SecondaryHdr: element.Bits8(b, 0, 1) == 1,
		IptsSrc:      element.Bits8(b, 1, 1),
		TsFmt:        element.Bits8(b, 2, 1),
		ChecksumMode: ChecksumMode(element.Bits8(b, 6, 2)),
	}
}

// PacketHeader is the fixed 24-byte header present at the start of every
// Ch10 packet.
type PacketHeader struct {
	Sync           uint16
	ChannelID      uint16
	PacketLength   uint32
	DataLength     uint32
	HeaderVersion  uint8
	Sequence       uint8
	Flags          Flags
	RawDataType    uint8
	DataType       Ch10PacketType
	RTCLow         uint32
	RTCHigh        uint16
	HeaderChecksum uint16
	// StartOffset is the absolute position in the chunk buffer where this
	// header began (before sync), used to resume scanning after a failure.
	StartOffset int
}

// internallyConsistent is the SeekSync candidate-validation rule:
// packet_length must exceed the header size, and the declared data_length
// must fit within packet_length minus the header.
func (h *PacketHeader) internallyConsistent() bool {
	if h.PacketLength <= Size {
		return false
	}
	return uint64(h.DataLength) <= uint64(h.PacketLength)-Size
}

// BodySize is the number of bytes following the header (and secondary
// header, if present) that belong to this packet's body plus trailing
// checksum, i.e. everything up to header.packet_length.
func (h *PacketHeader) BodySize() int {
	n := int(h.PacketLength) - Size
	if h.Flags.SecondaryHdr {
		n -= SecondaryHeaderSize
	}
	if n < 0 {
		return 0
	}
	return n
}

// ReadHeader binds a PacketHeader from the next Size bytes at cursor.
func ReadHeader(cursor *element.Cursor) (*PacketHeader, error) {
	start := cursor.Pos()

	var sync, channelID element.U16LE
	var packetLength, dataLength element.U32LE
	var headerVersion, sequence, flagsByte, dataTypeByte element.U8
	var rtcLow element.U32LE
	var rtcHigh element.U16LE
	var checksum element.U16LE

	err := element.ParseElements(cursor,
		&sync, &channelID, &packetLength, &dataLength,
		&headerVersion, &sequence, &flagsByte, &dataTypeByte,
		&rtcLow, &rtcHigh, &checksum,
	)
	if err != nil {
		return nil, err
	}

	return &PacketHeader{
		Sync:           sync.Value,
		ChannelID:      channelID.Value,
		PacketLength:   packetLength.Value,
		DataLength:     dataLength.Value,
		HeaderVersion:  headerVersion.Value,
		Sequence:       sequence.Value,
		Flags:          decodeFlags(flagsByte.Value),
		RawDataType:    dataTypeByte.Value,
		DataType:       TypeFromWireCode(dataTypeByte.Value),
		RTCLow:         rtcLow.Value,
		RTCHigh:        rtcHigh.Value,
		HeaderChecksum: checksum.Value,
		StartOffset:    start,
	}, nil
}

// VerifyHeaderChecksum validates h.HeaderChecksum against the 22 bytes that
// precede it in cursor's underlying buffer, per h.Flags.ChecksumMode.
func (h *PacketHeader) VerifyHeaderChecksum(cursor *element.Cursor) bool {
	base := cursor.Base()
	region := base[h.StartOffset : h.StartOffset+Size-2]
	return VerifyChecksum(h.Flags.ChecksumMode, region, h.HeaderChecksum)
}

// SecondaryHeader is the optional 12-byte extension present iff
// Flags.SecondaryHdr is set.
type SecondaryHeader struct {
	TimeSource uint8
	TimeFormat uint8
	TimeFields []byte // 8 raw bytes, decoded by internal/ch10/chronos.ParseIPTS
}

// ReadSecondaryHeader binds a SecondaryHeader from the next
// SecondaryHeaderSize bytes at cursor.
func ReadSecondaryHeader(cursor *element.Cursor) (*SecondaryHeader, error) {
	var timeSource, timeFormat element.U8
	reserved := element.NewRaw(2)
	timeFields := element.NewRaw(8)

	if err := element.ParseElements(cursor, &timeSource, &timeFormat, reserved, timeFields); err != nil {
		return nil, err
	}
	return &SecondaryHeader{
		TimeSource: timeSource.Value,
		TimeFormat: timeFormat.Value,
		TimeFields: timeFields.Value,
	}, nil
}

// SeekSync scans forward from the cursor's current position until it finds
// a header whose sync pattern matches and whose fields are internally
// consistent and (if tracker is non-nil) whose sequence number does not
// force a resync. On success the cursor is positioned just past the
// returned header. warned reports a single-deviation sequence warning that
// did not itself force a resync, for the caller to log.
func SeekSync(cursor *element.Cursor, tracker *SequenceTracker) (h *PacketHeader, warned bool, err error) {
	for {
		p := cursor.Pos()
		if cursor.Remaining() < Size {
			_ = cursor.SeekAbs(p)
			return nil, false, ErrIncompleteTail
		}
		peeked, perr := cursor.Peek(2)
		if perr != nil {
			_ = cursor.SeekAbs(p)
			return nil, false, ErrIncompleteTail
		}
		if uint16(peeked[0])|uint16(peeked[1])<<8 != SyncPattern {
			if serr := cursor.SeekAbs(p + 1); serr != nil {
				return nil, false, ErrIncompleteTail
			}
			continue
		}

		if serr := cursor.SeekAbs(p); serr != nil {
			return nil, false, ErrIncompleteTail
		}
		candidate, rerr := ReadHeader(cursor)
		if rerr != nil {
			_ = cursor.SeekAbs(p)
			return nil, false, ErrIncompleteTail
		}
		if !candidate.internallyConsistent() {
			if serr := cursor.SeekAbs(p + 1); serr != nil {
				return nil, false, ErrIncompleteTail
			}
			continue
		}

		if tracker != nil {
			w, forceResync := tracker.Check(candidate.ChannelID, candidate.Sequence)
			if forceResync {
				if serr := cursor.SeekAbs(p + 1); serr != nil {
					return nil, false, ErrIncompleteTail
				}
				continue
			}
			warned = w
		}
		return candidate, warned, nil
	}
}
