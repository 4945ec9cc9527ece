// Package ogg builds an Ogg bitstream (Vorbis or Opus logical stream) from a
// sequence of codec packets.
package ogg

import (
	"math/rand"
	"sync"

	"github.com/google/uuid"
)

const pageHeaderSize = 27

// Header type flags, per the Ogg bitstream spec.
const (
	headerContinued byte = 0x01
	headerBOS       byte = 0x02
	headerEOS       byte = 0x04
)

// Callback receives one flushed Ogg page as a (header, body) pair so
// transport code can send the two parts as a unit.
type Callback func(header, body []byte)

// IdentHeader is the codec-specific identification payload for the first
// Ogg packet (the 19-byte Opus layout, or a Vorbis identification header
// for the Vorbis variant).
type IdentHeader []byte

// CommentHeader is the vendor + comment-list payload for the second Ogg
// packet ("OpusTags" or Vorbis comment header).
type CommentHeader []byte

// Packetizer builds Ogg pages for one logical bitstream. It is not safe for
// concurrent use; a single ShoutConnection worker owns one Packetizer.
type Packetizer struct {
	serial        uint32
	packetNumber  int64
	granulePos    uint64
	headerWritten bool
	pageSequence  uint32

	sessionID string // correlation id for logs, not part of the wire format
}

// usedSerials records every serial NewPacketizer has handed out in this
// process.
var usedSerials sync.Map

// NewPacketizer creates a Packetizer with a fresh random serial, distinct
// from any serial used earlier in this process.
func NewPacketizer() *Packetizer {
	serial := rand.Uint32()
	for {
		if _, taken := usedSerials.LoadOrStore(serial, struct{}{}); !taken {
			break
		}
		serial = rand.Uint32()
	}
	return &Packetizer{
		serial:    serial,
		sessionID: uuid.NewString(),
	}
}

// SessionID returns the correlation id for this packetizer's lifetime,
// useful in worker log lines.
func (p *Packetizer) SessionID() string { return p.sessionID }

// InitStream emits the two bookkeeping packets required at the start of any
// Ogg logical stream: the identification header (bos=1, granule=0,
// packet_no=0) and the comment/tags header (bos=0, granule=0, packet_no=1).
// Both packets are flushed as their own pages immediately, matching
// ogg_stream_flush semantics.
func (p *Packetizer) InitStream(ident IdentHeader, comment CommentHeader, cb Callback) {
	p.emitPage(ident, headerBOS, 0, cb)
	p.headerWritten = true
	p.emitPage(comment, 0, 0, cb)
}

// Push appends one codec packet, advancing granulePos by granuleIncrement
// (samples-per-channel for Opus/Vorbis), and flushes the resulting page(s)
// through cb. If InitStream has not yet been called, Push panics: this is
// a programmer error in the encoder variant driving the packetizer.
func (p *Packetizer) Push(packet []byte, granuleIncrement uint64, cb Callback) {
	if !p.headerWritten {
		panic("ogg: Push called before InitStream")
	}
	p.granulePos += granuleIncrement
	p.emitPage(packet, 0, p.granulePos, cb)
}

// PushEOS flushes a terminal, zero-length packet with the end-of-stream
// flag set and the conventional granule position of all-ones, matching
// libogg's ogg_stream_flush-on-eos convention.
func (p *Packetizer) PushEOS(cb Callback) {
	p.emitPage(nil, headerEOS, ^uint64(0), cb)
}

// GranulePos returns the current granule position, which is monotonically
// non-decreasing.
func (p *Packetizer) GranulePos() uint64 { return p.granulePos }

// PacketNumber returns the number of packets emitted so far (including the
// two bookkeeping packets), strictly increasing.
func (p *Packetizer) PacketNumber() int64 { return p.packetNumber }

// emitPage builds one (or, for oversized packets, several segment-table
// entries within one) Ogg page for packet and delivers it via cb.
func (p *Packetizer) emitPage(packet []byte, headerType byte, granule uint64, cb Callback) {
	segments := segmentTable(len(packet))

	w := newBufWriter(pageHeaderSize + len(segments))
	w.PutBytes([]byte("OggS"))
	w.PutU8(0) // stream structure version
	w.PutU8(headerType)
	w.PutU64LE(granule)
	w.PutU32LE(p.serial)
	w.PutU32LE(p.pageSequence)
	w.PutU32LE(0) // checksum placeholder, patched below
	w.PutU8(uint8(len(segments)))
	for _, seg := range segments {
		w.PutU8(seg)
	}

	header := w.Bytes()
	body := append([]byte(nil), packet...)

	full := make([]byte, 0, len(header)+len(body))
	full = append(full, header...)
	full = append(full, body...)
	crc := checksum(full)
	header[22] = byte(crc)
	header[23] = byte(crc >> 8)
	header[24] = byte(crc >> 16)
	header[25] = byte(crc >> 24)

	p.pageSequence++
	p.packetNumber++

	cb(header, body)
}

// segmentTable returns the lacing-value sequence for a packet of the given
// length: as many 255s as needed followed by the final (possibly zero)
// remainder, per the Ogg bitstream's segmentation rule.
func segmentTable(length int) []byte {
	if length == 0 {
		return []byte{0}
	}
	segs := make([]byte, 0, length/255+1)
	for length >= 255 {
		segs = append(segs, 255)
		length -= 255
	}
	segs = append(segs, byte(length))
	return segs
}
