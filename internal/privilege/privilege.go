// Package privilege detects the user netwatch runs as. Reading other users'
// sockets needs root on most systems, and config files written under sudo
// should stay owned by the invoking user.
package privilege

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/user"
	"strconv"
)

// UserContext represents the identity of the original user when running under
// privilege escalation.
type UserContext struct {
	Username string
	UID      int
	GID      int
	HomeDir  string
}

// DetectOriginalUser extracts user identity, accounting for sudo execution.
// Under sudo it reads SUDO_USER/SUDO_UID/SUDO_GID, otherwise it returns the
// current user.
func DetectOriginalUser() (*UserContext, error) {
	sudoUser := os.Getenv("SUDO_USER")
	if sudoUser == "" {
		return currentUser()
	}

	uidStr, gidStr := os.Getenv("SUDO_UID"), os.Getenv("SUDO_GID")
	if uidStr == "" || gidStr == "" {
		return nil, fmt.Errorf("SUDO_USER set but SUDO_UID or SUDO_GID missing")
	}

	uid, err := strconv.Atoi(uidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SUDO_UID: %w", err)
	}
	gid, err := strconv.Atoi(gidStr)
	if err != nil {
		return nil, fmt.Errorf("invalid SUDO_GID: %w", err)
	}

	u, err := user.Lookup(sudoUser)
	if err != nil {
		return nil, fmt.Errorf("failed to lookup user %s: %w", sudoUser, err)
	}

	return &UserContext{Username: sudoUser, UID: uid, GID: gid, HomeDir: u.HomeDir}, nil
}

func currentUser() (*UserContext, error) {
	u, err := user.Current()
	if err != nil {
		return nil, fmt.Errorf("failed to get current user: %w", err)
	}
	return &UserContext{Username: u.Username, UID: os.Getuid(), GID: os.Getgid(), HomeDir: u.HomeDir}, nil
}

// IsRoot checks if the current process is running with root privileges (euid
// == 0).
func IsRoot() bool {
	return os.Geteuid() == 0
}

// IsRunningUnderSudo checks for the SUDO_USER environment variable.
func IsRunningUnderSudo() bool {
	return os.Getenv("SUDO_USER") != ""
}

// FixFileOwnership hands path back to the sudo user. It is a no-op unless
// running as root.
func FixFileOwnership(path string) error {
	if !IsRoot() {
		return nil
	}

	userCtx, err := DetectOriginalUser()
	if err != nil {
		return fmt.Errorf("failed to detect original user: %w", err)
	}

	if err := os.Chown(path, userCtx.UID, userCtx.GID); err != nil {
		return fmt.Errorf("failed to chown %s to %d:%d: %w", path, userCtx.UID, userCtx.GID, err)
	}
	return nil
}

// FetchHint suggests a fix for a failed connection table read. It returns
// "" when elevated privileges would not help.
func FetchHint(err error, root bool) string {
	if err == nil || root {
		return ""
	}
	if errors.Is(err, fs.ErrPermission) {
		return "reading the connection table was denied; rerun with sudo"
	}
	return "some connections may be hidden without elevated privileges; try rerunning with sudo"
}
