package settings

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSettings_Defaults(t *testing.T) {
	s := &Settings{}

	if got := s.GetAuditLog(); got != DefaultAuditLog {
		t.Errorf("GetAuditLog() default = %q, want %q", got, DefaultAuditLog)
	}
	if got := s.GetLockTTL(); got != DefaultLockTTL {
		t.Errorf("GetLockTTL() default = %d, want %d", got, DefaultLockTTL)
	}
	if s.DefaultHost != "" || s.RedisAddr != "" {
		t.Errorf("connection defaults should be empty, got %+v", s)
	}
}

func TestSettings_SetGet(t *testing.T) {
	tests := []struct {
		key   string
		value string
		want  string
	}{
		{"default_host", "dnac.example.com", "dnac.example.com"},
		{"default_username", "admin", "admin"},
		{"audit_log", "/tmp/audit.log", "/tmp/audit.log"},
		{"audit_db", "/tmp/audit.db", "/tmp/audit.db"},
		{"redis_addr", "127.0.0.1:6379", "127.0.0.1:6379"},
		{"jump_host", "bastion:2222", "bastion:2222"},
		{"jump_user", "ops", "ops"},
		{"jump_key_file", "~/.ssh/id_ed25519", "~/.ssh/id_ed25519"},
		{"known_hosts", "~/.ssh/known_hosts", "~/.ssh/known_hosts"},
		{"lock_ttl", "45", "45"},
		{"rate_limit", "2.5", "2.5"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			s := &Settings{}
			if err := s.Set(tt.key, tt.value); err != nil {
				t.Fatalf("Set(%q) failed: %v", tt.key, err)
			}
			got, err := s.Get(tt.key)
			if err != nil {
				t.Fatalf("Get(%q) failed: %v", tt.key, err)
			}
			if got != tt.want {
				t.Errorf("Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestSettings_SetRejectsBadValues(t *testing.T) {
	s := &Settings{}
	for key, value := range map[string]string{
		"lock_ttl":   "soon",
		"rate_limit": "-1",
		"network":    "x",
	} {
		if err := s.Set(key, value); err == nil {
			t.Errorf("Set(%q, %q) should fail", key, value)
		}
	}
	if _, err := s.Get("network"); err == nil {
		t.Error("Get() of an unknown key should fail")
	}
}

func TestKeysCoverEveryField(t *testing.T) {
	keys := Keys()
	if len(keys) != 11 {
		t.Errorf("Keys() = %v", keys)
	}
	if !strings.HasPrefix(strings.Join(keys, ","), "audit_db,audit_log,default_host") {
		t.Errorf("Keys() should be sorted, got %v", keys)
	}
}

func TestSettings_Clear(t *testing.T) {
	s := &Settings{
		DefaultHost: "dnac",
		RedisAddr:   "localhost:6379",
		RateLimit:   5,
	}

	s.Clear()

	if s.DefaultHost != "" || s.RedisAddr != "" || s.RateLimit != 0 {
		t.Error("Clear() should reset all fields to empty")
	}
}

func TestSettings_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")

	original := &Settings{
		DefaultHost:     "10.1.1.1",
		DefaultUsername: "admin",
		AuditDB:         "/var/lib/newtcc/audit.db",
		JumpHost:        "bastion",
		RateLimit:       4,
	}

	if err := original.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() failed: %v", err)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if *loaded != *original {
		t.Errorf("round trip mismatch: got %+v, want %+v", loaded, original)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("settings file mode = %v, want 0600", info.Mode().Perm())
	}
}

func TestSettings_LoadNonExistent(t *testing.T) {
	s, err := LoadFrom("/nonexistent/path/settings.json")
	if err != nil {
		t.Fatalf("LoadFrom() non-existent should not error: %v", err)
	}
	if s == nil || s.DefaultHost != "" {
		t.Error("LoadFrom() non-existent should return empty settings")
	}
}

func TestSettings_LoadInvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	if err := os.WriteFile(path, []byte("invalid json {"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	_, err := LoadFrom(path)
	if err == nil || !strings.Contains(err.Error(), path) {
		t.Errorf("LoadFrom() with invalid JSON should name the file, got %v", err)
	}
}

func TestSettings_SaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subdir", "nested", "settings.json")

	s := &Settings{DefaultHost: "test"}
	if err := s.SaveTo(path); err != nil {
		t.Fatalf("SaveTo() should create directories: %v", err)
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("SaveTo() should have created the file")
	}
}

func TestLoadAndSaveUseHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s, err := Load()
	if err != nil {
		t.Fatalf("Load() with non-existent file should not error: %v", err)
	}
	if s.DefaultHost != "" {
		t.Error("Load() with non-existent file should return empty settings")
	}

	s.DefaultHost = "saved-host"
	if err := s.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, ".newtcc", "settings.json")); err != nil {
		t.Fatalf("Save() did not create the file under HOME: %v", err)
	}

	loaded, err := Load()
	if err != nil {
		t.Fatalf("Load() after Save() failed: %v", err)
	}
	if loaded.DefaultHost != "saved-host" {
		t.Errorf("After Save(), DefaultHost = %q, want %q", loaded.DefaultHost, "saved-host")
	}
}

func TestDefaultSettingsPath_NoHome(t *testing.T) {
	t.Setenv("HOME", "")

	if path := DefaultSettingsPath(); path != "newtcc_settings.json" {
		t.Errorf("DefaultSettingsPath() with no HOME = %q, want %q", path, "newtcc_settings.json")
	}
}

func TestLoadFrom_ReadError(t *testing.T) {
	// A directory in place of the file
	dirAsFile := filepath.Join(t.TempDir(), "settings.json")
	if err := os.Mkdir(dirAsFile, 0755); err != nil {
		t.Fatalf("Failed to create directory: %v", err)
	}

	if _, err := LoadFrom(dirAsFile); err == nil {
		t.Error("LoadFrom() should error when path is a directory")
	}
}

func TestSaveTo_MkdirError(t *testing.T) {
	blockingFile := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blockingFile, []byte("blocking"), 0644); err != nil {
		t.Fatalf("Failed to create blocking file: %v", err)
	}

	s := &Settings{DefaultHost: "test"}
	if err := s.SaveTo(filepath.Join(blockingFile, "subdir", "settings.json")); err == nil {
		t.Error("SaveTo() should fail when directory creation fails")
	}
}
