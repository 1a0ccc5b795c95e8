// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is absent.
const EnvironmentVariable = "P4FS_CONFIG"

// Config is the complete p4fs configuration.
type Config struct {
	// Depot configures the p4 connection.
	Depot DepotConfig `yaml:"depot"`

	// Mount configures the FUSE mount.
	Mount MountConfig `yaml:"mount"`

	// Snapshot configures recording and replaying depot answers.
	Snapshot SnapshotConfig `yaml:"snapshot"`

	// Log configures the process logger.
	Log LogConfig `yaml:"log"`
}

// DepotConfig configures the p4 connection. Empty fields are not
// passed to p4, which then uses its own environment (P4PORT, P4CONFIG,
// tickets).
type DepotConfig struct {
	// Port is the server address, e.g. "ssl:perforce:1666".
	Port string `yaml:"port"`

	// User is the Perforce user. Required unless replaying a snapshot.
	User string `yaml:"user"`

	// Host overrides the client host name.
	Host string `yaml:"host"`

	// Client is the client workspace. Depot paths need none.
	Client string `yaml:"client"`

	// Charset is the unicode server charset, e.g. "utf8".
	Charset string `yaml:"charset"`

	// Binary is the p4 executable.
	// Default: p4 (found in PATH)
	Binary string `yaml:"binary" validate:"required"`

	// ExceptionLevel selects which p4 message severities fail a
	// query: none, errors or warnings.
	// Default: errors
	ExceptionLevel string `yaml:"exception_level" validate:"oneof=none errors warnings"`
}

// MountConfig configures the FUSE mount.
type MountConfig struct {
	// Mountpoint is the existing directory to mount on. Usually given
	// as the positional command line argument.
	Mountpoint string `yaml:"mountpoint" validate:"required"`

	// AllowOther permits other users to access the mount. Requires
	// user_allow_other in /etc/fuse.conf.
	AllowOther bool `yaml:"allow_other"`

	// AttributeStrategy resolves file attributes from the revision
	// log ("filelog", with sizes) or a flat listing ("files", no
	// sizes).
	// Default: filelog
	AttributeStrategy string `yaml:"attribute_strategy" validate:"oneof=filelog files"`

	// EntryTimeout, AttrTimeout and NegativeTimeout are the kernel
	// cache lifetimes for lookups, attributes and missing names.
	// Default: 1s, 1s, 100ms
	EntryTimeout    time.Duration `yaml:"entry_timeout" validate:"gte=0"`
	AttrTimeout     time.Duration `yaml:"attr_timeout" validate:"gte=0"`
	NegativeTimeout time.Duration `yaml:"negative_timeout" validate:"gte=0"`

	// Debug logs every FUSE request.
	Debug bool `yaml:"debug"`
}

// SnapshotConfig configures record and replay. At most one of Record
// and Replay may be set.
type SnapshotConfig struct {
	// Record is a file to write every depot answer to at unmount.
	Record string `yaml:"record"`

	// Replay is a snapshot file to answer from instead of a server.
	Replay string `yaml:"replay"`

	// Compression is the recorded body compression: none, lz4 or
	// zstd.
	// Default: zstd
	Compression string `yaml:"compression" validate:"oneof=none lz4 zstd"`

	// Recipients are age public keys (age1...) to seal recorded
	// snapshots to. Empty records in the clear.
	Recipients []string `yaml:"recipients"`

	// Identity is an age identity file used to open a sealed
	// snapshot when replaying.
	Identity string `yaml:"identity"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	// Default: info
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format is json or text.
	// Default: json
	Format string `yaml:"format" validate:"oneof=json text"`
}

// Default returns the default configuration, used as the base before
// a config file and flags are applied.
func Default() *Config {
	return &Config{
		Depot: DepotConfig{
			Binary:         "p4",
			ExceptionLevel: "errors",
		},
		Mount: MountConfig{
			AttributeStrategy: "filelog",
			EntryTimeout:      1 * time.Second,
			AttrTimeout:       1 * time.Second,
			NegativeTimeout:   100 * time.Millisecond,
		},
		Snapshot: SnapshotConfig{
			Compression: "zstd",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Locate returns the config file to load: the --config flag value if
// set, otherwise P4FS_CONFIG. Empty means no file.
func Locate(flagPath string) string {
	if flagPath != "" {
		return flagPath
	}
	return os.Getenv(EnvironmentVariable)
}

// Load loads configuration from the file named by P4FS_CONFIG.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your p4fs.yaml config file, or use --config flag", EnvironmentVariable)
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path on top of
// Default and expands variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.expandVariables()
	return cfg, nil
}

// loadFile merges a config file into the current config. Unknown keys
// are rejected so that typos do not silently fall back to defaults.
// Files named .json or .jsonc may carry comments and trailing commas;
// they are stripped to plain JSON, which the YAML decoder accepts.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		data = jsonc.ToJSON(data)
	}

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parsing config %s: %w", path, err)
	}
	return nil
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in
// connection and path fields.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Depot.Port = expandVars(c.Depot.Port, vars)
	c.Depot.User = expandVars(c.Depot.User, vars)
	c.Depot.Host = expandVars(c.Depot.Host, vars)
	c.Depot.Client = expandVars(c.Depot.Client, vars)
	c.Depot.Binary = expandVars(c.Depot.Binary, vars)
	c.Mount.Mountpoint = expandVars(c.Mount.Mountpoint, vars)
	c.Snapshot.Record = expandVars(c.Snapshot.Record, vars)
	c.Snapshot.Replay = expandVars(c.Snapshot.Replay, vars)
	c.Snapshot.Identity = expandVars(c.Snapshot.Identity, vars)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}
