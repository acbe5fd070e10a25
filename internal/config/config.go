// Package config loads and validates the voxtype configuration file.
// Credentials never live in the file; they are resolved from the
// environment per backend.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Backend  string         `yaml:"backend"`
	Language string         `yaml:"language"`
	Hotkey   HotkeyConfig   `yaml:"hotkey"`
	Audio    AudioConfig    `yaml:"audio"`
	Dispatch DispatchConfig `yaml:"dispatch"`
	Refine   RefineConfig   `yaml:"refine"`
	Deliver  DeliverConfig  `yaml:"deliver"`
	Control  ControlConfig  `yaml:"control"`
	Ollama   OllamaConfig   `yaml:"ollama"`
	LogLevel string         `yaml:"log_level"`
}

// HotkeyConfig holds hotkey-related settings.
type HotkeyConfig struct {
	Keys []string `yaml:"keys"`
	Mode string   `yaml:"mode"` // "hold" or "toggle"
}

// AudioConfig holds audio capture settings.
type AudioConfig struct {
	SampleRate    uint32 `yaml:"sample_rate"`
	Channels      uint32 `yaml:"channels"`
	MinDurationMS int    `yaml:"min_duration_ms"`
}

// DispatchConfig tunes chunking and the parallel dispatcher.
type DispatchConfig struct {
	MaxChunkMB    int `yaml:"max_chunk_mb"`
	OverlapKB     int `yaml:"overlap_kb"`
	MaxConcurrent int `yaml:"max_concurrent"`
	MaxAttempts   int `yaml:"max_attempts"`
}

// RefineConfig selects the optional transcript cleanup pass.
type RefineConfig struct {
	Preset  string         `yaml:"preset"` // active preset name; empty disables
	Presets []PresetConfig `yaml:"presets"`
}

// PresetConfig names one refinement instruction and its generator backend.
type PresetConfig struct {
	Name        string `yaml:"name"`
	Instruction string `yaml:"instruction"`
	Backend     string `yaml:"backend"`
}

// DeliverConfig holds text delivery settings.
type DeliverConfig struct {
	Method string `yaml:"method"` // "clipboard", "paste", or "type"
}

// ControlConfig holds the local control API settings.
type ControlConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// OllamaConfig points at a local Ollama server for refinement.
type OllamaConfig struct {
	URL   string `yaml:"url"`
	Model string `yaml:"model"`
}

// DefaultConfigDir returns the default config directory path.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "voxtype")
}

// DefaultConfigPath returns the default config file path.
func DefaultConfigPath() string {
	return filepath.Join(DefaultConfigDir(), "config.yaml")
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Backend:  "openai",
		Language: "",
		Hotkey: HotkeyConfig{
			Keys: []string{"ctrl", "shift", "r"},
			Mode: "toggle",
		},
		Audio: AudioConfig{
			SampleRate:    16000,
			Channels:      1,
			MinDurationMS: 300,
		},
		Dispatch: DispatchConfig{
			MaxChunkMB:    20,
			OverlapKB:     64,
			MaxConcurrent: 3,
			MaxAttempts:   3,
		},
		Refine: RefineConfig{
			Preset: "",
			Presets: []PresetConfig{
				{
					Name:        "punctuate",
					Instruction: "Add punctuation and capitalization to this transcript. Return only the corrected text.",
					Backend:     "openai",
				},
			},
		},
		Deliver: DeliverConfig{
			Method: "clipboard",
		},
		Control: ControlConfig{
			Enabled: false,
			Addr:    "127.0.0.1:8090",
		},
		Ollama: OllamaConfig{
			URL:   "http://localhost:11434",
			Model: "llama3.2",
		},
		LogLevel: "info",
	}
}

// Load reads and parses a YAML config file. Missing fields are filled
// with defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return cfg, nil
}

// Validate checks the config for invalid values.
func (c *Config) Validate() error {
	if c.Backend == "" {
		return fmt.Errorf("backend must not be empty")
	}

	if len(c.Hotkey.Keys) == 0 {
		return fmt.Errorf("hotkey.keys must not be empty")
	}

	switch c.Hotkey.Mode {
	case "hold", "toggle":
	default:
		return fmt.Errorf("hotkey.mode must be \"hold\" or \"toggle\", got %q", c.Hotkey.Mode)
	}

	if c.Audio.SampleRate == 0 {
		return fmt.Errorf("audio.sample_rate must be > 0")
	}

	if c.Audio.Channels == 0 {
		return fmt.Errorf("audio.channels must be > 0")
	}

	if c.Audio.MinDurationMS < 0 {
		return fmt.Errorf("audio.min_duration_ms must be >= 0")
	}

	if c.Dispatch.MaxChunkMB <= 0 {
		return fmt.Errorf("dispatch.max_chunk_mb must be > 0")
	}

	if c.Dispatch.OverlapKB < 0 {
		return fmt.Errorf("dispatch.overlap_kb must be >= 0")
	}

	if c.OverlapBytes() >= c.MaxChunkBytes() {
		return fmt.Errorf("dispatch.overlap_kb must be smaller than dispatch.max_chunk_mb")
	}

	if c.Dispatch.MaxConcurrent <= 0 {
		return fmt.Errorf("dispatch.max_concurrent must be > 0")
	}

	if c.Dispatch.MaxAttempts <= 0 {
		return fmt.Errorf("dispatch.max_attempts must be > 0")
	}

	seen := make(map[string]bool, len(c.Refine.Presets))
	for _, p := range c.Refine.Presets {
		if p.Name == "" {
			return fmt.Errorf("refine.presets entries need a name")
		}
		if seen[p.Name] {
			return fmt.Errorf("refine.presets: duplicate preset %q", p.Name)
		}
		seen[p.Name] = true
		if p.Instruction == "" {
			return fmt.Errorf("refine.presets: preset %q needs an instruction", p.Name)
		}
		if p.Backend == "" {
			return fmt.Errorf("refine.presets: preset %q needs a backend", p.Name)
		}
	}
	if c.Refine.Preset != "" && !seen[c.Refine.Preset] {
		return fmt.Errorf("refine.preset %q is not defined in refine.presets", c.Refine.Preset)
	}

	switch c.Deliver.Method {
	case "clipboard", "paste", "type":
	default:
		return fmt.Errorf("deliver.method must be \"clipboard\", \"paste\", or \"type\", got %q", c.Deliver.Method)
	}

	if c.Control.Enabled && c.Control.Addr == "" {
		return fmt.Errorf("control.addr must not be empty when control.enabled is true")
	}

	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log_level must be debug, info, warn, or error, got %q", c.LogLevel)
	}

	return nil
}

// ActivePreset returns the preset named by refine.preset, or nil when
// refinement is disabled. Validate guarantees the name resolves.
func (c *Config) ActivePreset() *PresetConfig {
	if c.Refine.Preset == "" {
		return nil
	}
	for i := range c.Refine.Presets {
		if c.Refine.Presets[i].Name == c.Refine.Preset {
			return &c.Refine.Presets[i]
		}
	}
	return nil
}

// MaxChunkBytes returns the dispatch chunk threshold in bytes.
func (c *Config) MaxChunkBytes() int {
	return c.Dispatch.MaxChunkMB << 20
}

// OverlapBytes returns the chunk overlap width in bytes.
func (c *Config) OverlapBytes() int {
	return c.Dispatch.OverlapKB << 10
}

// MinDuration returns the shortest recording worth transcribing.
func (c *Config) MinDuration() time.Duration {
	return time.Duration(c.Audio.MinDurationMS) * time.Millisecond
}

// APIKeyFor returns the credential for a backend from the environment,
// e.g. OPENAI_API_KEY for "openai". Empty means no credential is set.
func APIKeyFor(backendName string) string {
	if backendName == "" {
		return ""
	}
	name := strings.ToUpper(strings.ReplaceAll(backendName, "-", "_"))
	return os.Getenv(name + "_API_KEY")
}

// ParseLogLevel maps a config log level to a zerolog level. Unknown values
// fall back to info.
func ParseLogLevel(s string) zerolog.Level {
	switch s {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WriteDefault writes the default config to the default path if no config
// file exists yet. It returns the written path, or "" if a file was
// already present.
func WriteDefault() (string, error) {
	path := DefaultConfigPath()
	if path == "" {
		return "", fmt.Errorf("cannot determine config path")
	}

	if _, err := os.Stat(path); err == nil {
		return "", nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("checking config file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("creating config dir: %w", err)
	}

	data, err := yaml.Marshal(Default())
	if err != nil {
		return "", fmt.Errorf("marshaling default config: %w", err)
	}

	header := "# voxtype configuration\n" +
		"# API keys are read from the environment (OPENAI_API_KEY, GROQ_API_KEY, ...),\n" +
		"# never from this file.\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o644); err != nil {
		return "", fmt.Errorf("writing default config: %w", err)
	}

	return path, nil
}
