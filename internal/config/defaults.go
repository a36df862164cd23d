package config

import "time"

// Default configuration values.
const (
	DefaultLogLevel  = "info"
	DefaultSocketPath = "/var/spool/verigate/vrfy.sock"
	DefaultPIDFile    = "/run/verigate.pid"
	DefaultMaildropDir = "/var/spool/verigate/maildrop"

	DefaultMaxIdleTime = 100 * time.Second

	DefaultPositiveExpireTime  = 31 * 24 * time.Hour
	DefaultPositiveRefreshTime = 7 * 24 * time.Hour
	DefaultNegativeExpireTime  = 3 * time.Hour
	DefaultNegativeRefreshTime = 1000 * time.Second

	// ProbeTTL is the fixed minimum interval between successive probes for
	// the same address. Not configurable, a named constant rather than a
	// tunable.
	ProbeTTL = 1000 * time.Second
)
