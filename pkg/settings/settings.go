// Package settings manages persistent user settings for the newtcc CLI.
package settings

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// Defaults used when a setting is not stored.
const (
	DefaultAuditLog = "/var/log/newtcc/audit.log"
	DefaultLockTTL  = 30 // minutes
)

// Settings holds persistent user preferences
type Settings struct {
	// DefaultHost is the controller used when neither the playbook nor
	// --host names one
	DefaultHost string `json:"default_host,omitempty"`

	// DefaultUsername is the controller user used when neither the
	// playbook nor --username names one
	DefaultUsername string `json:"default_username,omitempty"`

	// AuditLog is the JSON-lines audit file
	AuditLog string `json:"audit_log,omitempty"`

	// AuditDB, when set, also records audit events in SQLite
	AuditDB string `json:"audit_db,omitempty"`

	// RedisAddr, when set, enables the per-site run lock
	RedisAddr string `json:"redis_addr,omitempty"`

	// LockTTL is the lock lifetime in minutes
	LockTTL int `json:"lock_ttl,omitempty"`

	// JumpHost is an SSH bastion in front of the controller
	JumpHost    string `json:"jump_host,omitempty"`
	JumpUser    string `json:"jump_user,omitempty"`
	JumpKeyFile string `json:"jump_key_file,omitempty"`
	KnownHosts  string `json:"known_hosts,omitempty"`

	// RateLimit caps controller requests per second; 0 is unlimited
	RateLimit float64 `json:"rate_limit,omitempty"`
}

// DefaultSettingsPath returns the default path for the settings file
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "newtcc_settings.json"
	}
	return filepath.Join(home, ".newtcc", "settings.json")
}

// Load reads settings from the default location
func Load() (*Settings, error) {
	return LoadFrom(DefaultSettingsPath())
}

// LoadFrom reads settings from a specific path
func LoadFrom(path string) (*Settings, error) {
	s := &Settings{}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty settings if file doesn't exist
			return s, nil
		}
		return nil, err
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	return s, nil
}

// Save writes settings to the default location
func (s *Settings) Save() error {
	return s.SaveTo(DefaultSettingsPath())
}

// SaveTo writes settings to a specific path. The file may hold a jump host
// key path, so it is private to the user.
func (s *Settings) SaveTo(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// GetAuditLog returns the audit log path (with fallback)
func (s *Settings) GetAuditLog() string {
	if s.AuditLog != "" {
		return s.AuditLog
	}
	return DefaultAuditLog
}

// GetLockTTL returns the lock TTL in minutes (with fallback)
func (s *Settings) GetLockTTL() int {
	if s.LockTTL > 0 {
		return s.LockTTL
	}
	return DefaultLockTTL
}

// field binds a settings key to its struct member.
type field struct {
	get func(s *Settings) string
	set func(s *Settings, v string) error
}

func stringField(p func(s *Settings) *string) field {
	return field{
		get: func(s *Settings) string { return *p(s) },
		set: func(s *Settings, v string) error { *p(s) = v; return nil },
	}
}

var fields = map[string]field{
	"default_host":     stringField(func(s *Settings) *string { return &s.DefaultHost }),
	"default_username": stringField(func(s *Settings) *string { return &s.DefaultUsername }),
	"audit_log":        stringField(func(s *Settings) *string { return &s.AuditLog }),
	"audit_db":         stringField(func(s *Settings) *string { return &s.AuditDB }),
	"redis_addr":       stringField(func(s *Settings) *string { return &s.RedisAddr }),
	"jump_host":        stringField(func(s *Settings) *string { return &s.JumpHost }),
	"jump_user":        stringField(func(s *Settings) *string { return &s.JumpUser }),
	"jump_key_file":    stringField(func(s *Settings) *string { return &s.JumpKeyFile }),
	"known_hosts":      stringField(func(s *Settings) *string { return &s.KnownHosts }),
	"lock_ttl": {
		get: func(s *Settings) string {
			if s.LockTTL == 0 {
				return ""
			}
			return strconv.Itoa(s.LockTTL)
		},
		set: func(s *Settings, v string) error {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				return fmt.Errorf("lock_ttl must be a whole number of minutes, got %q", v)
			}
			s.LockTTL = n
			return nil
		},
	},
	"rate_limit": {
		get: func(s *Settings) string {
			if s.RateLimit == 0 {
				return ""
			}
			return strconv.FormatFloat(s.RateLimit, 'f', -1, 64)
		},
		set: func(s *Settings, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || f < 0 {
				return fmt.Errorf("rate_limit must be a non-negative number, got %q", v)
			}
			s.RateLimit = f
			return nil
		},
	},
}

// Keys returns every settings key in sorted order.
func Keys() []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the stored value of key, or "" when unset.
func (s *Settings) Get(key string) (string, error) {
	f, ok := fields[key]
	if !ok {
		return "", fmt.Errorf("unknown setting: %s", key)
	}
	return f.get(s), nil
}

// Set parses value into key.
func (s *Settings) Set(key, value string) error {
	f, ok := fields[key]
	if !ok {
		return fmt.Errorf("unknown setting: %s", key)
	}
	return f.set(s, value)
}

// Clear resets all settings to defaults
func (s *Settings) Clear() {
	*s = Settings{}
}
