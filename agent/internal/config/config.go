package config

import (
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/agnivade/levenshtein"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/formcheck/formcheck/pkg/pose"
)

// Default values applied when fields are absent from the config file.
const (
	DefaultPollInterval = 100 * time.Millisecond
	DefaultBufferSize   = 1000
)

// sessionNamespace seeds the ids generated for sessions configured without
// one, so the same session keeps its id across reloads.
var sessionNamespace = uuid.MustParse("6f1c1a52-3e4b-4c55-9d8a-2b7f0e1d9a10")

// Config is the top-level agent configuration.
// Fields map 1:1 to config.example.yaml.
type Config struct {
	Agent    AgentConfig    `yaml:"agent"`
	Analysis AnalysisConfig `yaml:"analysis"`
}

// AgentConfig holds the runtime settings of formcheck-agent.
type AgentConfig struct {
	// ServerEndpoint is the gRPC address of formcheck-server (host:port).
	ServerEndpoint string `yaml:"server_endpoint"`

	// PollInterval controls how often http sources are asked for a frame.
	PollInterval time.Duration `yaml:"poll_interval"`

	// BufferSize is the maximum number of records held in memory when
	// the server is unreachable.
	BufferSize int `yaml:"buffer_size"`

	// ServerAuth configures how the agent authenticates to formcheck-server.
	// Supports mtls | apikey | none.
	ServerAuth AuthConfig `yaml:"server_auth"`

	// Sessions is the list of analysis sessions, one per landmark stream.
	Sessions []Session `yaml:"sessions"`
}

// Session is one patient stream analyzed by the agent.
type Session struct {
	// ID identifies the session to the server. A stable id is derived from
	// the session's position and source when left empty.
	ID string `yaml:"id"`

	// Exercise selects the angle-range profile. Unknown names fall back to
	// the default profile.
	Exercise string `yaml:"exercise"`

	// Source describes where landmark frames come from.
	Source Source `yaml:"source"`

	// Zones are the exclusion zones checked on every frame.
	Zones []ZoneConfig `yaml:"zones"`
}

// Source describes one landmark frame stream.
type Source struct {
	// Type is the source type: jsonl | http.
	Type string `yaml:"type"`

	// Path is the JSONL file to replay ("-" reads stdin). Used when Type is jsonl.
	Path string `yaml:"path"`

	// Endpoint is the detector URL polled for the latest frame. Used when
	// Type is http.
	Endpoint string `yaml:"endpoint"`

	// Auth configures how the agent authenticates to the detector.
	Auth AuthConfig `yaml:"auth"`

	// TLS holds optional TLS dial options.
	TLS TLSConfig `yaml:"tls"`
}

// AuthConfig specifies an authentication mode.
type AuthConfig struct {
	// Mode is one of: mtls | apikey | bearer | basic | none.
	Mode string `yaml:"mode"`

	// mTLS fields, used when Mode == "mtls".
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// API key fields, used when Mode == "apikey".
	// Header is the header name to send the key in.
	Header string `yaml:"header"`
	// KeyEnv is the name of the environment variable that holds the key value.
	KeyEnv string `yaml:"key_env"`

	// TokenEnv names the environment variable holding the bearer token.
	TokenEnv string `yaml:"token_env"`

	// Basic auth fields, used when Mode == "basic".
	Username    string `yaml:"username"`
	PasswordEnv string `yaml:"password_env"`
}

// Key returns the API key value resolved from the environment.
// Returns empty string if KeyEnv is unset or the variable is not found.
func (a AuthConfig) Key() string {
	if a.KeyEnv == "" {
		return ""
	}
	return os.Getenv(a.KeyEnv)
}

// Token returns the bearer token value resolved from the environment.
func (a AuthConfig) Token() string {
	if a.TokenEnv == "" {
		return ""
	}
	return os.Getenv(a.TokenEnv)
}

// Password returns the basic-auth password resolved from the environment.
func (a AuthConfig) Password() string {
	if a.PasswordEnv == "" {
		return ""
	}
	return os.Getenv(a.PasswordEnv)
}

// TLSConfig holds per-source TLS dial options.
type TLSConfig struct {
	// InsecureSkipVerify disables TLS certificate verification.
	// Only use this for internal CAs in development environments.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify"`
}

// ZoneConfig is one exclusion zone in normalized frame coordinates.
type ZoneConfig struct {
	// Shape is rect or circle.
	Shape  string  `yaml:"shape"`
	X      float64 `yaml:"x"`
	Y      float64 `yaml:"y"`
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
	Radius float64 `yaml:"radius"`
}

// Zone converts the config entry to an engine zone.
func (z ZoneConfig) Zone() pose.Zone {
	if z.Shape == "circle" {
		return pose.Circle{X: z.X, Y: z.Y, Radius: z.Radius}
	}
	return pose.Rect{X: z.X, Y: z.Y, Width: z.Width, Height: z.Height}
}

// PoseZones converts every zone of the session.
func (s Session) PoseZones() []pose.Zone {
	out := make([]pose.Zone, 0, len(s.Zones))
	for _, z := range s.Zones {
		out = append(out, z.Zone())
	}
	return out
}

// Load reads and parses the YAML config file at path.
// Missing optional fields are filled with sensible defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML config data, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := defaults()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse yaml: %w", err)
	}

	assignSessionIDs(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}

// defaults returns a Config pre-populated with default values.
func defaults() *Config {
	return &Config{
		Agent: AgentConfig{
			PollInterval: DefaultPollInterval,
			BufferSize:   DefaultBufferSize,
		},
		Analysis: defaultAnalysis(),
	}
}

func assignSessionIDs(cfg *Config) {
	for i := range cfg.Agent.Sessions {
		s := &cfg.Agent.Sessions[i]
		if s.Exercise == "" {
			s.Exercise = pose.DefaultExercise
		}
		if s.ID != "" {
			continue
		}
		seed := fmt.Sprintf("%d/%s/%s%s", i, s.Source.Type, s.Source.Path, s.Source.Endpoint)
		s.ID = uuid.NewSHA1(sessionNamespace, []byte(seed)).String()
	}
}

// validate checks required fields and structural constraints.
func validate(cfg *Config) error {
	if cfg.Agent.ServerEndpoint == "" {
		return fmt.Errorf("agent.server_endpoint is required")
	}
	if cfg.Agent.PollInterval <= 0 {
		return fmt.Errorf("agent.poll_interval must be positive")
	}
	if cfg.Agent.BufferSize <= 0 {
		return fmt.Errorf("agent.buffer_size must be positive")
	}
	switch cfg.Agent.ServerAuth.Mode {
	case "mtls", "apikey", "none", "":
	default:
		return fmt.Errorf("agent.server_auth: unknown mode %q", cfg.Agent.ServerAuth.Mode)
	}

	seen := make(map[string]bool, len(cfg.Agent.Sessions))
	for i, s := range cfg.Agent.Sessions {
		if seen[s.ID] {
			return fmt.Errorf("sessions[%d]: duplicate id %q", i, s.ID)
		}
		seen[s.ID] = true

		if err := validateSource(s.Source); err != nil {
			return fmt.Errorf("sessions[%d] %q: %w", i, s.ID, err)
		}
		for j, z := range s.Zones {
			if err := validateZone(z); err != nil {
				return fmt.Errorf("sessions[%d] %q: zones[%d]: %w", i, s.ID, j, err)
			}
		}
	}

	if _, err := cfg.Analysis.Build(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	return nil
}

func validateSource(src Source) error {
	switch src.Type {
	case "jsonl":
		if src.Path == "" {
			return errors.New("source: path is required for jsonl")
		}
	case "http":
		if src.Endpoint == "" {
			return errors.New("source: endpoint is required for http")
		}
	default:
		return fmt.Errorf("source: unknown type %q%s", src.Type, didYouMean(src.Type, []string{"jsonl", "http"}))
	}
	switch src.Auth.Mode {
	case "apikey", "bearer", "basic", "none", "":
	default:
		return fmt.Errorf("source: unknown auth mode %q", src.Auth.Mode)
	}
	return nil
}

func validateZone(z ZoneConfig) error {
	switch z.Shape {
	case "rect":
		if z.Width < 0 || z.Height < 0 {
			return errors.New("rect width and height must not be negative")
		}
	case "circle":
		if z.Radius <= 0 {
			return errors.New("circle radius must be positive")
		}
	default:
		return fmt.Errorf("unknown shape %q%s", z.Shape, didYouMean(z.Shape, []string{"rect", "circle"}))
	}
	return nil
}

// didYouMean returns a ` (did you mean "x"?)` suffix naming the candidate
// closest to name, or "" when nothing is close enough to be a typo.
func didYouMean(name string, candidates []string) string {
	if name == "" {
		return ""
	}
	best, bestDist := "", -1
	for _, c := range candidates {
		d := levenshtein.ComputeDistance(name, c)
		if bestDist < 0 || d < bestDist {
			best, bestDist = c, d
		}
	}
	if bestDist < 0 || bestDist > max(2, len(name)/3) {
		return ""
	}
	return fmt.Sprintf(" (did you mean %q?)", best)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
