package main

import (
	"fmt"
	"os"
	"os/user"

	"github.com/google/uuid"
	"golang.org/x/term"

	"github.com/newtron-network/newtcc/pkg/catalyst"
	"github.com/newtron-network/newtcc/pkg/settings"
)

// passwordEnv names the environment variable read when the playbook holds
// no password.
const passwordEnv = "NEWTCC_PASSWORD"

// controllerPassword returns fromPlaybook when set, then $NEWTCC_PASSWORD,
// then prompts on the terminal.
func controllerPassword(fromPlaybook string) (string, error) {
	if fromPlaybook != "" {
		return fromPlaybook, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("controller password required: set password in the playbook or %s", passwordEnv)
	}
	fmt.Fprint(os.Stderr, "Controller password: ")
	b, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	if len(b) == 0 {
		return "", fmt.Errorf("controller password required")
	}
	return string(b), nil
}

// jumpDialer connects to the configured SSH jump host. It returns nil when
// no jump host is set.
func jumpDialer(s *settings.Settings) (*catalyst.SSHDialer, error) {
	if s.JumpHost == "" {
		return nil, nil
	}
	d, err := catalyst.NewSSHDialer(catalyst.JumpHost{
		Addr:           s.JumpHost,
		User:           s.JumpUser,
		Password:       os.Getenv("NEWTCC_JUMP_PASSWORD"),
		KeyFile:        expandHome(s.JumpKeyFile),
		KnownHostsFile: expandHome(s.KnownHosts),
	})
	if err != nil {
		return nil, fmt.Errorf("jump host %s: %w", s.JumpHost, err)
	}
	return d, nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if len(path) < 2 || path[:2] != "~/" {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return home + path[1:]
}

// currentUser identifies the operator in audit events and lock holders.
func currentUser() string {
	if u, err := user.Current(); err == nil {
		return u.Username
	}
	return "unknown"
}

func newRunID() string {
	return uuid.NewString()
}
