package httpapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/denpacast/broadcast/internal/broadcast"
	"github.com/denpacast/broadcast/internal/encoder"
	"github.com/denpacast/broadcast/internal/shout"
)

// profileHandlers holds the gin route handlers for profile CRUD and the
// global enable toggle.
type profileHandlers struct {
	coord      *broadcast.Coordinator
	configPath string
}

func newProfileHandlers(coord *broadcast.Coordinator, configPath string) *profileHandlers {
	return &profileHandlers{coord: coord, configPath: configPath}
}

// profileView is the wire representation of a Profile; Password is never
// echoed back, since leaking stored source passwords to any
// unauthenticated GET /api/profiles caller would be a needless hole.
type profileView struct {
	Name              string `json:"name"`
	Enabled           bool   `json:"enabled"`
	Server            string `json:"server"`
	Host              string `json:"host"`
	Port              int    `json:"port"`
	Mountpoint        string `json:"mountpoint"`
	StreamName        string `json:"streamName"`
	StreamDescription string `json:"streamDescription"`
	StreamGenre       string `json:"streamGenre"`
	StreamWebsite     string `json:"streamWebsite"`
	Public            bool   `json:"public"`
	Format            string `json:"format"`
	BitrateKbps       int    `json:"bitrateKbps"`
	Status            string `json:"status"`
}

func toProfileView(p *shout.Profile, status shout.ConnectionStatus) profileView {
	return profileView{
		Name:              p.Name,
		Enabled:           p.Enabled(),
		Server:            p.Server.String(),
		Host:              p.Host,
		Port:              p.Port,
		Mountpoint:        p.Mountpoint,
		StreamName:        p.StreamName,
		StreamDescription: p.StreamDescription,
		StreamGenre:       p.StreamGenre,
		StreamWebsite:     p.StreamWebsite,
		Public:            p.Public,
		Format:            p.Format.String(),
		BitrateKbps:       p.BitrateKbps,
		Status:            status.String(),
	}
}

// List handles GET /api/profiles (public read-only status surface; only
// mutations require a token).
func (h *profileHandlers) List(c *gin.Context) {
	profiles := h.coord.Profiles()
	views := make([]profileView, 0, len(profiles))
	for _, p := range profiles {
		views = append(views, toProfileView(p, h.coord.Status(p.Name)))
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "profiles": views})
}

type createProfileRequest struct {
	Name        string `json:"name"`
	Server      string `json:"server"`
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Mountpoint  string `json:"mountpoint"`
	Login       string `json:"login"`
	Password    string `json:"password"`
	StreamName  string `json:"streamName"`
	Format      string `json:"format"`
	BitrateKbps int    `json:"bitrateKbps"`
	Channels    string `json:"channels"`
}

// Create handles POST /api/profiles (protected).
func (h *profileHandlers) Create(c *gin.Context) {
	var body createProfileRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	if body.Name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "name is required"})
		return
	}

	server, err := parseServerKindParam(body.Server)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	format, err := parseFormatParam(body.Format)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	channels, err := parseChannelsParam(body.Channels)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}

	p := &shout.Profile{
		Name:        body.Name,
		Server:      server,
		Host:        body.Host,
		Port:        body.Port,
		Mountpoint:  body.Mountpoint,
		Login:       body.Login,
		Password:    body.Password,
		StreamName:  body.StreamName,
		Format:      format,
		BitrateKbps: body.BitrateKbps,
		Channels:    channels,
	}

	if err := h.coord.AddConnection(p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": err.Error()})
		return
	}
	h.persist()
	c.JSON(http.StatusCreated, gin.H{"status": "ok", "profile": toProfileView(p, h.coord.Status(p.Name))})
}

// Delete handles DELETE /api/profiles/:name (protected).
func (h *profileHandlers) Delete(c *gin.Context) {
	name := c.Param("name")
	h.coord.RemoveConnection(name)
	h.persist()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetEnabled handles PUT /api/profiles/:name/enabled (protected).
func (h *profileHandlers) SetEnabled(c *gin.Context) {
	name := c.Param("name")
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}

	var found *shout.Profile
	for _, p := range h.coord.Profiles() {
		if p.Name == name {
			found = p
			break
		}
	}
	if found == nil {
		c.JSON(http.StatusNotFound, gin.H{"status": "error", "error": "no such profile"})
		return
	}
	found.SetEnabled(body.Enabled)
	h.persist()
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// SetGlobalEnabled handles PUT /api/broadcast/enabled (protected), spec
// §4.6's "on_enable_changed" 4-state button collapsed to on/off at the
// HTTP boundary.
func (h *profileHandlers) SetGlobalEnabled(c *gin.Context) {
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid request body"})
		return
	}
	v := 0.0
	if body.Enabled {
		v = 1.0
	}
	h.coord.OnEnableChanged(v)
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *profileHandlers) persist() {
	if h.configPath == "" {
		return
	}
	_ = shout.SaveProfiles(h.configPath, h.coord.Profiles())
}

func parseServerKindParam(s string) (shout.ServerKind, error) {
	switch s {
	case "", "icecast2":
		return shout.Icecast2, nil
	case "icecast1":
		return shout.Icecast1, nil
	case "shoutcast":
		return shout.Shoutcast, nil
	default:
		return 0, errors.New("unknown server kind")
	}
}

func parseFormatParam(s string) (shout.Format, error) {
	switch s {
	case "", "mp3":
		return shout.FormatMp3, nil
	case "vorbis":
		return shout.FormatVorbis, nil
	case "opus":
		return shout.FormatOpus, nil
	case "aac":
		return shout.FormatAac, nil
	case "heaac":
		return shout.FormatHeAac, nil
	default:
		return 0, errors.New("unknown format")
	}
}

func parseChannelsParam(s string) (encoder.ChannelMode, error) {
	switch s {
	case "", "automatic":
		return encoder.ChannelAutomatic, nil
	case "mono":
		return encoder.ChannelMono, nil
	case "stereo":
		return encoder.ChannelStereo, nil
	default:
		return 0, errors.New("unknown channel mode")
	}
}
