package ogg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpusIdentHeaderExactBytes pins the identification header's exact
// byte layout.
func TestOpusIdentHeaderExactBytes(t *testing.T) {
	h := BuildOpusIdentHeader(2, 48000, 312)

	expected := []byte{
		0x4F, 0x70, 0x75, 0x73, 0x48, 0x65, 0x61, 0x64, // "OpusHead"
		0x01,       // version
		0x02,       // channels
		0x38, 0x01, // pre-skip = 312 LE
		0x80, 0xBB, 0x00, 0x00, // sample rate = 48000 LE
		0x00, 0x00, // output gain
		0x00, // mapping family
	}
	require.Len(t, h, 19)
	assert.Equal(t, expected, []byte(h))
}

func TestOpusCommentHeaderIncludesOptionalFields(t *testing.T) {
	c := BuildOpusCommentHeader("denpacast", "DJ A", "Song", "")
	s := string(c)
	assert.Contains(t, s, "OpusTags")
	assert.Contains(t, s, "ENCODER=denpacast")
	assert.Contains(t, s, "ARTIST=DJ A")
	assert.Contains(t, s, "TITLE=Song")
	assert.NotContains(t, s, "ALBUM=")
}

func TestOpusCommentHeaderOmitsEmptyFields(t *testing.T) {
	c := BuildOpusCommentHeader("denpacast", "", "", "")
	s := string(c)
	assert.Contains(t, s, "ENCODER=denpacast")
	assert.NotContains(t, s, "ARTIST=")
	assert.NotContains(t, s, "TITLE=")
	assert.NotContains(t, s, "ALBUM=")
}

func TestInitStreamEmitsBOSThenTagsWithCorrectPacketNumbers(t *testing.T) {
	p := NewPacketizer()

	var headerTypes []byte
	p.InitStream(BuildOpusIdentHeader(2, 48000, 0), BuildOpusCommentHeader("x", "", "", ""), func(header, body []byte) {
		headerTypes = append(headerTypes, header[5])
	})

	require.Len(t, headerTypes, 2)
	assert.Equal(t, headerBOS, headerTypes[0])
	assert.Equal(t, byte(0), headerTypes[1])
	assert.EqualValues(t, 2, p.PacketNumber())
	assert.EqualValues(t, 0, p.GranulePos())
}

func TestGranulePosMonotonicAndPacketNumberStrictlyIncreasing(t *testing.T) {
	p := NewPacketizer()
	p.InitStream(BuildOpusIdentHeader(2, 48000, 0), BuildOpusCommentHeader("x", "", "", ""), func(header, body []byte) {})

	lastGranule := p.GranulePos()
	lastPacketNo := p.PacketNumber()

	for i := 0; i < 5; i++ {
		p.Push([]byte{0x01, 0x02, 0x03}, 1920, func(header, body []byte) {})
		assert.GreaterOrEqual(t, p.GranulePos(), lastGranule)
		assert.Greater(t, p.PacketNumber(), lastPacketNo)
		lastGranule = p.GranulePos()
		lastPacketNo = p.PacketNumber()
	}
	assert.EqualValues(t, 9600, p.GranulePos()) // 1920 * 5
	assert.EqualValues(t, 7, p.PacketNumber())  // ident + comment + 5 data packets
}

func TestPushBeforeInitStreamPanics(t *testing.T) {
	p := NewPacketizer()
	assert.Panics(t, func() {
		p.Push([]byte{1}, 1920, func(header, body []byte) {})
	})
}

func TestEmitPagePatchesNonZeroChecksumIntoHeader(t *testing.T) {
	p := NewPacketizer()
	var headers [][]byte
	p.InitStream(BuildOpusIdentHeader(2, 48000, 0), BuildOpusCommentHeader("x", "", "", ""), func(header, body []byte) {
		headers = append(headers, append([]byte(nil), header...))
	})

	require.Len(t, headers, 2)
	for _, h := range headers {
		crc := uint32(h[22]) | uint32(h[23])<<8 | uint32(h[24])<<16 | uint32(h[25])<<24
		assert.NotZero(t, crc)
	}
	// Different page content (different packet numbers) should checksum
	// differently.
	assert.NotEqual(t, headers[0][22:26], headers[1][22:26])
}

func TestPageHeaderCarriesSerialAndIncreasingPageSequence(t *testing.T) {
	p := NewPacketizer()
	var sequences []uint32
	cb := func(header, body []byte) {
		seq := uint32(header[18]) | uint32(header[19])<<8 | uint32(header[20])<<16 | uint32(header[21])<<24
		sequences = append(sequences, seq)
	}
	p.InitStream(BuildOpusIdentHeader(2, 48000, 0), BuildOpusCommentHeader("x", "", "", ""), cb)
	p.Push([]byte{1, 2, 3}, 1920, cb)

	require.Len(t, sequences, 3)
	assert.Equal(t, []uint32{0, 1, 2}, sequences)
}

func TestPushEOSSetsEOSFlagAndAllOnesGranule(t *testing.T) {
	p := NewPacketizer()
	p.InitStream(BuildOpusIdentHeader(2, 48000, 0), BuildOpusCommentHeader("x", "", "", ""), func(header, body []byte) {})

	var header []byte
	p.PushEOS(func(h, b []byte) { header = h })

	granule := uint64(0)
	for i := 0; i < 8; i++ {
		granule |= uint64(header[6+i]) << (8 * i)
	}
	assert.Equal(t, ^uint64(0), granule)
	assert.Equal(t, headerEOS, header[5])
}

func TestSegmentTableHandlesOversizedPackets(t *testing.T) {
	assert.Equal(t, []byte{0}, segmentTable(0))
	assert.Equal(t, []byte{10}, segmentTable(10))
	assert.Equal(t, []byte{255, 0}, segmentTable(255))
	assert.Equal(t, []byte{255, 10}, segmentTable(265))
}
