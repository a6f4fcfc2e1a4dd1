package framed

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/rs/zerolog"
)

type (
	// Config carries the file-loadable subset of Server settings.
	Config struct {
		Addr       string
		Port       int
		ReuseAddr  bool
		Terminator string
		Name       string
		LogLevel   zerolog.Level
	}

	fileConfig struct {
		Addr       string `toml:"addr"`
		Port       int    `toml:"port"`
		ReuseAddr  bool   `toml:"reuse_addr"`
		Terminator string `toml:"terminator"`
		Name       string `toml:"name"`
		LogLevel   string `toml:"log_level"`
	}
)

// DefaultConfig returns the settings a zero Server would use.
func DefaultConfig() Config {
	return Config{
		Terminator: "\n",
		LogLevel:   zerolog.InfoLevel,
	}
}

// LoadConfig reads a TOML file and overlays it onto DefaultConfig.
// Absent keys keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("framed: load config: %w", err)
	}

	if meta.IsDefined("addr") {
		cfg.Addr = strings.TrimSpace(raw.Addr)
	}
	if meta.IsDefined("port") {
		if raw.Port < 0 || raw.Port > 65535 {
			return Config{}, fmt.Errorf("framed: port out of range: %d", raw.Port)
		}
		cfg.Port = raw.Port
	}
	if meta.IsDefined("reuse_addr") {
		cfg.ReuseAddr = raw.ReuseAddr
	}
	if meta.IsDefined("terminator") {
		cfg.Terminator = raw.Terminator
	}
	if meta.IsDefined("name") {
		cfg.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("log_level") {
		lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw.LogLevel)))
		if err != nil {
			return Config{}, fmt.Errorf("framed: parse log_level: %w", err)
		}
		cfg.LogLevel = lvl
	}

	return cfg, nil
}

// Apply copies the config onto a not-yet-started Server.
func (cfg Config) Apply(s *Server) {
	s.Addr = cfg.Addr
	s.Port = cfg.Port
	s.ReuseAddr = cfg.ReuseAddr
	s.Name = cfg.Name
	if cfg.Terminator != "" && cfg.Terminator != "\n" {
		s.Codec = &LineCodec{Terminator: cfg.Terminator}
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)
}
