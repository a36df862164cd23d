package daemon

import (
	"golang.org/x/sys/unix"
)

// DetachProcessGroup moves the calling process into a new process group so
// a supervisor-wide stop signal cannot interrupt a table write mid-flight.
// Call once during startup, before opening the backing table.
func DetachProcessGroup() error {
	_, err := unix.Setsid()
	return err
}

// UmaskScope temporarily installs a umask and restores the previous one on
// Release, no matter which exit path a caller takes.
type UmaskScope struct {
	previous int
}

// Umask022 acquires a 022 umask for the duration of opening the persistent
// verify-map table with O_CREAT.
func Umask022() *UmaskScope {
	return &UmaskScope{previous: unix.Umask(0022)}
}

// Release restores the umask that was in effect before this scope began.
func (u *UmaskScope) Release() {
	unix.Umask(u.previous)
}
