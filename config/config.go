// Package config loads and validates the static parameters shared by the
// coordinator and worker: network address, secret key, and the timing
// constants that drive the liveness tracker and shutdown grace period.
package config

import (
	"encoding/json"
	"fmt"
	"os"
)

const (
	// DefaultServerAddress is used when a config file omits server_address.
	DefaultServerAddress = "127.0.0.1"
	// DefaultServerPort is used when a config file omits server_port.
	DefaultServerPort = 3100
	// DefaultHeartbeatTimeout is used when a config file omits heartbeat_timeout.
	DefaultHeartbeatTimeout = 300
	// DefaultQuitCounter is used when a config file omits quit_counter.
	DefaultQuitCounter = 10

	// secretKeyLen is the exact required length of the raw secret key, in bytes.
	secretKeyLen = 32
	// minHeartbeatTimeout is the smallest heartbeat_timeout accepted, in seconds.
	minHeartbeatTimeout = 10
)

// Config holds the parameters shared by the coordinator and every worker.
// It is immutable once returned by Load: nothing in the core mutates it
// after construction.
type Config struct {
	ServerAddress     string
	ServerPort        int
	HeartbeatTimeout  int // seconds
	QuitCounter       int
	SecretKey         [secretKeyLen]byte
}

// fileFormat mirrors the on-disk JSON shape. SecretKey is a plain string in
// the file; Load converts it to raw bytes and validates its length. The
// optional fields are pointers so an explicit zero value (e.g.
// "quit_counter": 0) can be told apart from an omitted key, matching the
// original Python loader's "if key in data" semantics.
type fileFormat struct {
	SecretKey        string `json:"secret_key"`
	ServerAddress    *string `json:"server_address"`
	ServerPort       *int    `json:"server_port"`
	HeartbeatTimeout *int    `json:"heartbeat_timeout"`
	QuitCounter      *int    `json:"quit_counter"`
}

// ValidationError reports which configuration field failed validation and
// why. Codec, dispatcher, and worker errors are distinct types (§7); a bad
// config is always a ValidationError so callers can reliably detect it with
// errors.As and exit before opening any socket.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: invalid %s: %s", e.Field, e.Reason)
}

// Load reads and validates a JSON configuration file. Defaults are applied
// for any field the file omits, then the whole result is validated:
// secret_key must decode to exactly 32 raw bytes, heartbeat_timeout must be
// greater than 9 seconds, and quit_counter must be greater than 0. Any
// violation is fatal — Load never returns a partially valid Config.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: failed to read %s: %w", path, err)
	}

	var ff fileFormat
	if err := json.Unmarshal(raw, &ff); err != nil {
		return Config{}, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}

	cfg := Config{
		ServerAddress:    DefaultServerAddress,
		ServerPort:       DefaultServerPort,
		HeartbeatTimeout: DefaultHeartbeatTimeout,
		QuitCounter:      DefaultQuitCounter,
	}

	if ff.ServerAddress != nil {
		cfg.ServerAddress = *ff.ServerAddress
	}
	if ff.ServerPort != nil {
		cfg.ServerPort = *ff.ServerPort
	}
	if ff.HeartbeatTimeout != nil {
		cfg.HeartbeatTimeout = *ff.HeartbeatTimeout
	}
	if ff.QuitCounter != nil {
		cfg.QuitCounter = *ff.QuitCounter
	}

	if len(ff.SecretKey) != secretKeyLen {
		return Config{}, &ValidationError{
			Field:  "secret_key",
			Reason: fmt.Sprintf("must be exactly %d bytes long, got %d", secretKeyLen, len(ff.SecretKey)),
		}
	}
	copy(cfg.SecretKey[:], ff.SecretKey)

	if cfg.HeartbeatTimeout <= minHeartbeatTimeout-1 {
		return Config{}, &ValidationError{
			Field:  "heartbeat_timeout",
			Reason: fmt.Sprintf("must be greater than %d seconds, got %d", minHeartbeatTimeout-1, cfg.HeartbeatTimeout),
		}
	}

	if cfg.QuitCounter <= 0 {
		return Config{}, &ValidationError{
			Field:  "quit_counter",
			Reason: fmt.Sprintf("must be greater than 0, got %d", cfg.QuitCounter),
		}
	}

	return cfg, nil
}
