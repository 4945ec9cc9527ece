package shout

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildSourceRequestIncludesIcyHeaders(t *testing.T) {
	p := baseProfile()
	p.Login = "source"
	p.Password = "hackme"
	p.StreamName = "My Station"
	p.BitrateKbps = 128

	req := string(p.buildSourceRequest())
	assert.True(t, strings.HasPrefix(req, "SOURCE /stream HTTP/1.0\r\n"))
	assert.Contains(t, req, "Authorization: Basic ")
	assert.Contains(t, req, "icy-name: My Station\r\n")
	assert.Contains(t, req, "icy-br: 128\r\n")
	assert.Contains(t, req, "Content-Type: audio/mpeg\r\n")
	assert.True(t, strings.HasSuffix(req, "\r\n\r\n"))
}

func TestBuildSourceRequestUsesXAudiocastHeadersForIcecast1(t *testing.T) {
	p := baseProfile()
	p.Server = Icecast1
	p.StreamName = "Retro"

	req := string(p.buildSourceRequest())
	assert.Contains(t, req, "x-audiocast-name: Retro\r\n")
	assert.NotContains(t, req, "icy-name:")
}

func TestBuildShoutcastHandshakeStartsWithPassword(t *testing.T) {
	p := baseProfile()
	p.Password = "letmein"

	req := string(p.buildShoutcastHandshake())
	assert.True(t, strings.HasPrefix(req, "letmein\r\n"))
	assert.Contains(t, req, "icy-br:")
}

func TestContentTypePerFormat(t *testing.T) {
	p := baseProfile()
	p.Format = FormatOpus
	assert.Equal(t, "application/ogg", p.contentType())
	p.Format = FormatAac
	assert.Equal(t, "audio/aac", p.contentType())
}

func TestIsSuccessStatusLine(t *testing.T) {
	assert.True(t, isSuccessStatusLine("HTTP/1.0 200 OK"))
	assert.True(t, isSuccessStatusLine("OK2"))
	assert.False(t, isSuccessStatusLine("HTTP/1.0 401 Unauthorized"))
}

func TestIsFatalStatusLine(t *testing.T) {
	assert.True(t, isFatalStatusLine("HTTP/1.0 401 Unauthorized"))
	assert.False(t, isFatalStatusLine("HTTP/1.0 503 Service Unavailable"))
}
