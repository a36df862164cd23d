package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTestConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "test.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

const minimalConfig = `
[daemon]
socket_path = "/tmp/vrfy.sock"
log_level = "debug"

[address_verify]
map = "/tmp/verify.db"
sender = ""
positive_expire_time = "744h"
negative_cache = true

[proxymap]
read_maps = "proxy:hash:/etc/aliases proxy:proxy:cdb:/etc/postfix/virtual"
`

func TestLoadMinimal(t *testing.T) {
	path := writeTestConfig(t, minimalConfig)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.Daemon.LogLevel)
	}
	if cfg.Verify.Map != "/tmp/verify.db" {
		t.Errorf("Verify.Map = %q", cfg.Verify.Map)
	}
	if !cfg.Verify.NegativeCache {
		t.Errorf("Verify.NegativeCache = false, want true")
	}
	// "31d" is not a valid Go duration string and is not digits-only, so
	// validate() rejects it; that case is exercised in TestLoadInvalidDuration.
}

func TestApplyDefaults(t *testing.T) {
	path := writeTestConfig(t, `
[address_verify]
map = ""
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Daemon.SocketPath != DefaultSocketPath {
		t.Errorf("SocketPath = %q, want default", cfg.Daemon.SocketPath)
	}
	if cfg.Verify.PositiveExpireTime != DefaultPositiveExpireTime.String() {
		t.Errorf("PositiveExpireTime = %q", cfg.Verify.PositiveExpireTime)
	}
	if cfg.Verify.MaildropDir != DefaultMaildropDir {
		t.Errorf("MaildropDir = %q", cfg.Verify.MaildropDir)
	}
}

func TestLoadInvalidDuration(t *testing.T) {
	path := writeTestConfig(t, `
[address_verify]
positive_expire_time = "31d"
`)
	if _, err := Load(path); err == nil {
		t.Fatalf("Load: expected error for invalid duration, got nil")
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
	}{
		{"1h", time.Hour},
		{"3600", 3600 * time.Second},
		{"1000s", 1000 * time.Second},
	}
	for _, c := range cases {
		got, err := ParseDuration(c.in)
		if err != nil {
			t.Errorf("ParseDuration(%q): %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseDuration(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestParseDurationInvalid(t *testing.T) {
	if _, err := ParseDuration("not-a-duration"); err == nil {
		t.Fatalf("ParseDuration: expected error")
	}
}
