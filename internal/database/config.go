package database

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	ConnectionExternal = "external"
	ConnectionEmbedded = "embedded"
)

type Config struct {
	Connection     ConnectionConfig `json:"connection"`
	MaxConnections int32            `json:"max_connections"`
}

type ConnectionConfig struct {
	// Type selects "external" or "embedded".
	Type     string         `json:"type"`
	URI      string         `json:"uri,omitempty"`
	Embedded EmbeddedConfig `json:"embedded,omitempty"`
}

type EmbeddedConfig struct {
	RootPath            string `json:"root_path"`
	Port                uint16 `json:"port"`
	Username            string `json:"username"`
	Password            string `json:"password"`
	Database            string `json:"database"`
	Persistent          bool   `json:"persistent"`
	StartTimeoutSeconds int    `json:"start_timeout_seconds"`
	// MirrorURL overrides the binary download repository for air-gapped
	// or mirrored setups. Empty means the library default.
	MirrorURL string `json:"mirror_url,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Connection: ConnectionConfig{
			Type: ConnectionEmbedded,
			Embedded: EmbeddedConfig{
				RootPath:            "./data/postgres",
				Port:                5433,
				Username:            "overseer",
				Password:            "overseer",
				Database:            "overseer",
				Persistent:          true,
				StartTimeoutSeconds: 45,
			},
		},
		MaxConnections: 8,
	}
}

func (c Config) Validate() error {
	if c.MaxConnections <= 0 {
		return errors.New("database: max_connections must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Connection.Type)) {
	case ConnectionExternal:
		if strings.TrimSpace(c.Connection.URI) == "" {
			return errors.New("database: external connection requires a uri")
		}
	case ConnectionEmbedded:
		e := c.Connection.Embedded
		if strings.TrimSpace(e.RootPath) == "" {
			return errors.New("database: embedded connection requires a root_path")
		}
		if e.Port == 0 {
			return errors.New("database: embedded connection requires a port")
		}
		if e.Username == "" || e.Password == "" {
			return errors.New("database: embedded connection requires username and password")
		}
	default:
		return fmt.Errorf("database: unknown connection type %q", c.Connection.Type)
	}
	return nil
}

func (e EmbeddedConfig) startTimeout() time.Duration {
	if e.StartTimeoutSeconds <= 0 {
		return 45 * time.Second
	}
	return time.Duration(e.StartTimeoutSeconds) * time.Second
}
