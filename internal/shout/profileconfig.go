package shout

import (
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/denpacast/broadcast/internal/encoder"
)

// profileFile is the on-disk shape of broadcast.yaml: a flat list of
// destinations, for a human-edited YAML config rather than
// program-maintained state.
type profileFile struct {
	Profiles []profileConfig `yaml:"profiles"`
}

type profileConfig struct {
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`

	Server     string `yaml:"server"` // icecast2 | icecast1 | shoutcast
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Mountpoint string `yaml:"mountpoint"`
	Login      string `yaml:"login"`
	Password   string `yaml:"password"`

	StreamName        string `yaml:"stream_name"`
	StreamDescription string `yaml:"stream_description"`
	StreamGenre       string `yaml:"stream_genre"`
	StreamWebsite     string `yaml:"stream_website"`
	Public            bool   `yaml:"public"`

	Format      string `yaml:"format"` // mp3 | vorbis | opus | aac | heaac
	BitrateKbps int    `yaml:"bitrate_kbps"`
	Channels    string `yaml:"channels"` // automatic | mono | stereo

	MetadataDynamic  bool   `yaml:"metadata_dynamic"`
	MetadataTemplate string `yaml:"metadata_template"`
	MetadataCharset  string `yaml:"metadata_charset"`
	OggDynamicUpdate bool   `yaml:"ogg_dynamic_update"`

	ReconnectEnabled      bool `yaml:"reconnect_enabled"`
	ReconnectFirstDelayMs int  `yaml:"reconnect_first_delay_ms"`
	ReconnectPeriodMs     int  `yaml:"reconnect_period_ms"`
	ReconnectLimitRetries bool `yaml:"reconnect_limit_retries"`
	ReconnectMaxRetries   int  `yaml:"reconnect_max_retries"`
}

func parseServerKind(s string) (ServerKind, error) {
	switch s {
	case "", "icecast2":
		return Icecast2, nil
	case "icecast1":
		return Icecast1, nil
	case "shoutcast":
		return Shoutcast, nil
	default:
		return 0, fmt.Errorf("shout: unknown server kind %q", s)
	}
}

func parseFormat(s string) (Format, error) {
	switch s {
	case "", "mp3":
		return FormatMp3, nil
	case "vorbis":
		return FormatVorbis, nil
	case "opus":
		return FormatOpus, nil
	case "aac":
		return FormatAac, nil
	case "heaac":
		return FormatHeAac, nil
	default:
		return 0, fmt.Errorf("shout: unknown format %q", s)
	}
}

func parseChannelMode(s string) (encoder.ChannelMode, error) {
	switch s {
	case "", "automatic":
		return encoder.ChannelAutomatic, nil
	case "mono":
		return encoder.ChannelMono, nil
	case "stereo":
		return encoder.ChannelStereo, nil
	default:
		return 0, fmt.Errorf("shout: unknown channel mode %q", s)
	}
}

// toProfile converts the parsed YAML entry into a runtime Profile. It does
// not call Validate; the caller decides whether to reject malformed entries
// or surface them to the operator for correction.
func (pc profileConfig) toProfile() (*Profile, error) {
	server, err := parseServerKind(pc.Server)
	if err != nil {
		return nil, err
	}
	format, err := parseFormat(pc.Format)
	if err != nil {
		return nil, err
	}
	channels, err := parseChannelMode(pc.Channels)
	if err != nil {
		return nil, err
	}

	p := &Profile{
		Name:              pc.Name,
		Server:            server,
		Host:              pc.Host,
		Port:              pc.Port,
		Mountpoint:        pc.Mountpoint,
		Login:             pc.Login,
		Password:          pc.Password,
		StreamName:        pc.StreamName,
		StreamDescription: pc.StreamDescription,
		StreamGenre:       pc.StreamGenre,
		StreamWebsite:     pc.StreamWebsite,
		Public:            pc.Public,
		Format:            format,
		BitrateKbps:       pc.BitrateKbps,
		Channels:          channels,
		Metadata: MetadataPolicy{
			Dynamic:          pc.MetadataDynamic,
			Template:         pc.MetadataTemplate,
			Charset:          pc.MetadataCharset,
			OggDynamicUpdate: pc.OggDynamicUpdate,
		},
		Reconnect: ReconnectPolicy{
			Enabled:      pc.ReconnectEnabled,
			FirstDelay:   time.Duration(pc.ReconnectFirstDelayMs) * time.Millisecond,
			Period:       time.Duration(pc.ReconnectPeriodMs) * time.Millisecond,
			LimitRetries: pc.ReconnectLimitRetries,
			MaxRetries:   pc.ReconnectMaxRetries,
		},
	}
	p.SetEnabled(pc.Enabled)
	return p, nil
}

// LoadProfiles reads and parses a broadcast.yaml file. A missing file is not
// an error — it is treated as "no profiles configured yet," since an
// operator may add the first one through internal/httpapi before ever
// hand-editing the file.
func LoadProfiles(path string) ([]*Profile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("shout: reading %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("shout: parsing %s: %w", path, err)
	}

	profiles := make([]*Profile, 0, len(file.Profiles))
	for _, pc := range file.Profiles {
		p, err := pc.toProfile()
		if err != nil {
			return nil, fmt.Errorf("shout: profile %q: %w", pc.Name, err)
		}
		profiles = append(profiles, p)
	}
	return profiles, nil
}

// SaveProfiles writes profiles back to path in the same format LoadProfiles
// reads, so the operator can hand-edit what the HTTP API persists.
func SaveProfiles(path string, profiles []*Profile) error {
	file := profileFile{Profiles: make([]profileConfig, 0, len(profiles))}
	for _, p := range profiles {
		file.Profiles = append(file.Profiles, fromProfile(p))
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("shout: marshaling profiles: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("shout: writing %s: %w", path, err)
	}
	return nil
}

func fromProfile(p *Profile) profileConfig {
	var channels string
	switch p.Channels {
	case encoder.ChannelMono:
		channels = "mono"
	case encoder.ChannelStereo:
		channels = "stereo"
	default:
		channels = "automatic"
	}

	return profileConfig{
		Name:                  p.Name,
		Enabled:               p.Enabled(),
		Server:                p.Server.String(),
		Host:                  p.Host,
		Port:                  p.Port,
		Mountpoint:            p.Mountpoint,
		Login:                 p.Login,
		Password:              p.Password,
		StreamName:            p.StreamName,
		StreamDescription:     p.StreamDescription,
		StreamGenre:           p.StreamGenre,
		StreamWebsite:         p.StreamWebsite,
		Public:                p.Public,
		Format:                p.Format.String(),
		BitrateKbps:           p.BitrateKbps,
		Channels:              channels,
		MetadataDynamic:       p.Metadata.Dynamic,
		MetadataTemplate:      p.Metadata.Template,
		MetadataCharset:       p.Metadata.Charset,
		OggDynamicUpdate:      p.Metadata.OggDynamicUpdate,
		ReconnectEnabled:      p.Reconnect.Enabled,
		ReconnectFirstDelayMs: int(p.Reconnect.FirstDelay / time.Millisecond),
		ReconnectPeriodMs:     int(p.Reconnect.Period / time.Millisecond),
		ReconnectLimitRetries: p.Reconnect.LimitRetries,
		ReconnectMaxRetries:   p.Reconnect.MaxRetries,
	}
}
