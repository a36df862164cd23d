package vrfy

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"
)

// MaildropSubmitter is a concrete ProbeSubmitter: it composes a probe
// envelope and drops it atomically into a maildrop directory for the mail
// system's queue manager to pick up, using the same write-to-temp-then-
// rename technique as an atomic config rewrite.
type MaildropSubmitter struct {
	dir    string
	logger *slog.Logger
	seq    atomic.Uint64
	clock  func() time.Time
}

// NewMaildropSubmitter prepares a submitter that writes into dir, creating
// it if necessary.
func NewMaildropSubmitter(dir string, logger *slog.Logger) (*MaildropSubmitter, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("vrfy: creating maildrop directory %s: %w", dir, err)
	}
	return &MaildropSubmitter{dir: dir, logger: logger, clock: time.Now}, nil
}

// Submit composes a verify-request envelope addressed from sender to
// recipient and writes it into the maildrop directory. The empty string
// (or the literal "<>") is the null sender. Submission is synchronous: the
// return value is known before Submit returns.
func (m *MaildropSubmitter) Submit(sender, recipient string) (bool, error) {
	envelopeSender := sender
	if envelopeSender == "<>" {
		envelopeSender = ""
	}

	seq := m.seq.Add(1)
	name := fmt.Sprintf("verify-%d-%d", m.clock().UnixNano(), seq)
	finalPath := filepath.Join(m.dir, name)
	tmpPath := finalPath + ".tmp"

	var body strings.Builder
	fmt.Fprintf(&body, "MAIL FROM:<%s>\n", envelopeSender)
	fmt.Fprintf(&body, "RCPT TO:<%s>\n", recipient)
	body.WriteString("X-Verify-Request: yes\n")
	body.WriteString("X-Verify-Cleanup-Rewrite: none\n")
	body.WriteString("\n")

	if err := os.WriteFile(tmpPath, []byte(body.String()), 0600); err != nil {
		return false, fmt.Errorf("vrfy: writing probe envelope: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		os.Remove(tmpPath)
		return false, fmt.Errorf("vrfy: committing probe envelope: %w", err)
	}

	m.logger.Debug("submitted verification probe",
		"sender", envelopeSender,
		"recipient", recipient,
		"file", finalPath)
	return true, nil
}
