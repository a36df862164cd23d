// Package config handles TOML configuration parsing and validation shared
// by vrfyd and proxymapd.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the top-level configuration. Both daemons load the same file
// shape; each only consults the sections it cares about, mirroring how a
// Postfix-style supervisor hands every child process the same main.cf.
type Config struct {
	Daemon DaemonConfig `toml:"daemon"`
	Verify VerifyConfig `toml:"address_verify"`
	Proxy  ProxyConfig  `toml:"proxymap"`
}

// DaemonConfig holds settings common to the generic server skeleton both
// daemons run inside.
type DaemonConfig struct {
	SocketPath  string `toml:"socket_path"`
	LogLevel    string `toml:"log_level"`
	PIDFile     string `toml:"pid_file"`
	ChrootDir   string `toml:"chroot_dir"`
	RunAsUser   string `toml:"run_as_user"`
	MaxIdleTime string `toml:"max_idle_time"` // parsed and validated only; daemon.Skeleton has no idle limit
	MaxUseCount int    `toml:"max_use_count"` // parsed only; daemon.Skeleton does not count or limit requests
}

// VerifyConfig holds the `address_verify_*` options.
type VerifyConfig struct {
	Map                 string `toml:"map"`                  // address_verify_map; empty = in-memory only
	Sender              string `toml:"sender"`                // address_verify_sender
	PositiveExpireTime  string `toml:"positive_expire_time"`
	PositiveRefreshTime string `toml:"positive_refresh_time"`
	NegativeExpireTime  string `toml:"negative_expire_time"`
	NegativeRefreshTime string `toml:"negative_refresh_time"`
	NegativeCache       bool   `toml:"negative_cache"`
	MaildropDir         string `toml:"maildrop_dir"` // where MaildropSubmitter drops probe envelopes
}

// ProxyConfig holds the `proxy_read_maps` option.
type ProxyConfig struct {
	ReadMaps string `toml:"read_maps"`
}

// Load reads and validates a configuration file, filling in defaults for
// any option left unset.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	applyDefaults(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Daemon.LogLevel == "" {
		cfg.Daemon.LogLevel = DefaultLogLevel
	}
	if cfg.Daemon.SocketPath == "" {
		cfg.Daemon.SocketPath = DefaultSocketPath
	}
	if cfg.Daemon.PIDFile == "" {
		cfg.Daemon.PIDFile = DefaultPIDFile
	}
	if cfg.Daemon.MaxIdleTime == "" {
		cfg.Daemon.MaxIdleTime = DefaultMaxIdleTime.String()
	}

	if cfg.Verify.PositiveExpireTime == "" {
		cfg.Verify.PositiveExpireTime = DefaultPositiveExpireTime.String()
	}
	if cfg.Verify.PositiveRefreshTime == "" {
		cfg.Verify.PositiveRefreshTime = DefaultPositiveRefreshTime.String()
	}
	if cfg.Verify.NegativeExpireTime == "" {
		cfg.Verify.NegativeExpireTime = DefaultNegativeExpireTime.String()
	}
	if cfg.Verify.NegativeRefreshTime == "" {
		cfg.Verify.NegativeRefreshTime = DefaultNegativeRefreshTime.String()
	}
	if cfg.Verify.MaildropDir == "" {
		cfg.Verify.MaildropDir = DefaultMaildropDir
	}
}

func validate(cfg *Config) error {
	if _, err := ParseDuration(cfg.Verify.PositiveExpireTime); err != nil {
		return fmt.Errorf("address_verify.positive_expire_time: %w", err)
	}
	if _, err := ParseDuration(cfg.Verify.PositiveRefreshTime); err != nil {
		return fmt.Errorf("address_verify.positive_refresh_time: %w", err)
	}
	if _, err := ParseDuration(cfg.Verify.NegativeExpireTime); err != nil {
		return fmt.Errorf("address_verify.negative_expire_time: %w", err)
	}
	if _, err := ParseDuration(cfg.Verify.NegativeRefreshTime); err != nil {
		return fmt.Errorf("address_verify.negative_refresh_time: %w", err)
	}
	if cfg.Daemon.MaxIdleTime != "" {
		if _, err := ParseDuration(cfg.Daemon.MaxIdleTime); err != nil {
			return fmt.Errorf("daemon.max_idle_time: %w", err)
		}
	}
	return nil
}

// ParseDuration parses a duration string, falling back to plain integer
// seconds the way Postfix-style time values are written (e.g. "3600" or
// "1h").
func ParseDuration(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs) * time.Second, nil
}
