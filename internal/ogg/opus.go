package ogg

import "fmt"

// BuildOpusIdentHeader returns the exact 19-byte Opus identification header:
// magic "OpusHead", version 1, channel count, pre-skip (little-endian),
// sample rate (little-endian), output gain 0, mapping family 0.
func BuildOpusIdentHeader(channels uint8, sampleRate uint32, preSkip uint16) IdentHeader {
	w := newBufWriter(19)
	w.PutBytes([]byte("OpusHead"))
	w.PutU8(1) // version
	w.PutU8(channels)
	w.PutU16LE(preSkip)
	w.PutU32LE(sampleRate)
	w.PutU16LE(0) // output gain
	w.PutU8(0)    // mapping family
	return IdentHeader(w.Bytes())
}

// BuildOpusCommentHeader returns the "OpusTags" vendor + comment-list
// packet. A mandatory ENCODER= comment is always included; artist/title/
// album are added only when non-empty.
func BuildOpusCommentHeader(vendor, artist, title, album string) CommentHeader {
	comments := []string{fmt.Sprintf("ENCODER=%s", vendor)}
	if artist != "" {
		comments = append(comments, "ARTIST="+artist)
	}
	if title != "" {
		comments = append(comments, "TITLE="+title)
	}
	if album != "" {
		comments = append(comments, "ALBUM="+album)
	}

	w := newBufWriter(64)
	w.PutBytes([]byte("OpusTags"))
	w.PutU32LE(uint32(len(vendor)))
	w.PutBytes([]byte(vendor))
	w.PutU32LE(uint32(len(comments)))
	for _, c := range comments {
		w.PutU32LE(uint32(len(c)))
		w.PutBytes([]byte(c))
	}
	return CommentHeader(w.Bytes())
}
