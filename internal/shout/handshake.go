package shout

import (
	"bufio"
	"encoding/base64"
	"fmt"
	"net"
	"net/textproto"
	"strings"
	"time"

	"github.com/denpacast/broadcast/internal/encoder"
)

// No real libshout Go binding exists in this module's dependency pool, so
// the SOURCE handshake is hand-built over net.Conn, using the ICY header
// conventions shown in the icecast listener/server code this package is
// grounded on (icy-name/icy-br/icy-pub/ice-audio-info) applied to the
// push/SOURCE side instead of the pull/listener side.

// contentType returns the MIME type the destination server expects for
// this profile's format, used as the handshake's Content-Type header.
func (p *Profile) contentType() string {
	switch p.Format {
	case FormatMp3:
		return "audio/mpeg"
	case FormatVorbis, FormatOpus:
		return "application/ogg"
	case FormatAac, FormatHeAac:
		return "audio/aac"
	default:
		return "application/octet-stream"
	}
}

// buildSourceRequest renders the handshake request line + headers for an
// Icecast1/Icecast2 destination: an HTTP SOURCE request carrying Basic auth
// and the ICY stream-description headers (host, port, user, password,
// mountpoint, stream name/desc/genre/url/public, format, bitrate — all set
// before the connection opens). Icecast1 uses the same field set under a
// different protocol constant (XAUDIOCAST); this package does not
// distinguish the two at the wire level beyond the icy-* vs x-audiocast-*
// header names some older Icecast1 servers expect, handled below.
func (p *Profile) buildSourceRequest() []byte {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("SOURCE %s HTTP/1.0\r\n", p.Mountpoint))

	auth := base64.StdEncoding.EncodeToString([]byte(p.Login + ":" + p.Password))
	b.WriteString("Authorization: Basic " + auth + "\r\n")
	b.WriteString("User-Agent: denpacast-broadcast/1.0\r\n")
	b.WriteString("Content-Type: " + p.contentType() + "\r\n")

	nameKey, descKey, genreKey, urlKey, pubKey, brKey := "icy-name", "icy-description", "icy-genre", "icy-url", "icy-pub", "icy-br"
	if p.Server == Icecast1 {
		nameKey, descKey, genreKey, urlKey, pubKey, brKey = "x-audiocast-name", "x-audiocast-description", "x-audiocast-genre", "x-audiocast-url", "x-audiocast-public", "x-audiocast-bitrate"
	}

	b.WriteString(nameKey + ": " + p.StreamName + "\r\n")
	b.WriteString(descKey + ": " + p.StreamDescription + "\r\n")
	b.WriteString(genreKey + ": " + p.StreamGenre + "\r\n")
	b.WriteString(urlKey + ": " + p.StreamWebsite + "\r\n")
	if p.Public {
		b.WriteString(pubKey + ": 1\r\n")
	} else {
		b.WriteString(pubKey + ": 0\r\n")
	}
	b.WriteString(brKey + fmt.Sprintf(": %d\r\n", p.BitrateKbps))
	b.WriteString("ice-audio-info: " + fmt.Sprintf("bitrate=%d;channels=%d;samplerate=%d", p.BitrateKbps, channelCount(p.Channels), p.sampleRateHint()) + "\r\n")
	b.WriteString("\r\n")
	return []byte(b.String())
}

// buildShoutcastHandshake renders the legacy Shoutcast ICY handshake: the
// password on its own line, followed by ICY headers, using the ICY
// (rather than HTTP) protocol Shoutcast expects.
func (p *Profile) buildShoutcastHandshake() []byte {
	var b strings.Builder
	b.WriteString(p.Password + "\r\n")
	b.WriteString(fmt.Sprintf("icy-name:%s\r\n", p.StreamName))
	b.WriteString(fmt.Sprintf("icy-genre:%s\r\n", p.StreamGenre))
	b.WriteString(fmt.Sprintf("icy-url:%s\r\n", p.StreamWebsite))
	if p.Public {
		b.WriteString("icy-pub:1\r\n")
	} else {
		b.WriteString("icy-pub:0\r\n")
	}
	b.WriteString(fmt.Sprintf("icy-br:%d\r\n", p.BitrateKbps))
	b.WriteString("\r\n")
	return []byte(b.String())
}

func channelCount(mode encoder.ChannelMode) int {
	if mode == encoder.ChannelMono {
		return 1
	}
	return 2
}

func (p *Profile) sampleRateHint() int {
	if p.Format == FormatOpus {
		return 48000
	}
	return 44100
}

// dialTimeout bounds the initial TCP connect, distinct from the
// handshake-response read timeout below.
const dialTimeout = 5 * time.Second

// handshakeReadTimeout bounds how long the connect attempt waits for a
// response line before classifying it as ConnectTransient.
const handshakeReadTimeout = 5 * time.Second

// performHandshake dials the destination and exchanges the SOURCE/ICY
// handshake, returning an open net.Conn ready for raw body writes on
// success. Classifies failures into the ConnectFatal vs ConnectTransient
// split.
func performHandshake(p *Profile) (net.Conn, error) {
	addr := fmt.Sprintf("%s:%d", p.Host, p.Port)
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, &connectError{kind: ConnectTransient, err: err}
	}

	var req []byte
	if p.Server == Shoutcast {
		req = p.buildShoutcastHandshake()
	} else {
		req = p.buildSourceRequest()
	}

	if _, err := conn.Write(req); err != nil {
		conn.Close()
		return nil, &connectError{kind: ConnectTransient, err: err}
	}

	_ = conn.SetReadDeadline(time.Now().Add(handshakeReadTimeout))
	reader := bufio.NewReader(conn)
	tp := textproto.NewReader(reader)
	statusLine, err := tp.ReadLine()
	if err != nil {
		conn.Close()
		return nil, &connectError{kind: ConnectTransient, err: err}
	}
	_ = conn.SetReadDeadline(time.Time{})

	if !isSuccessStatusLine(statusLine) {
		conn.Close()
		kind := ConnectTransient
		if isFatalStatusLine(statusLine) {
			kind = ConnectFatal
		}
		return nil, &connectError{kind: kind, err: fmt.Errorf("shout: handshake rejected: %s", statusLine)}
	}

	return conn, nil
}

func isSuccessStatusLine(line string) bool {
	return strings.Contains(line, "200") || strings.HasPrefix(strings.ToUpper(line), "OK")
}

func isFatalStatusLine(line string) bool {
	return strings.Contains(line, "401") || strings.Contains(line, "403") || strings.Contains(line, "400")
}
