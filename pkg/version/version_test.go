package version

import "testing"

func TestDefaults(t *testing.T) {
	if Version != "dev" {
		t.Errorf("default Version = %q, want %q", Version, "dev")
	}
	if GitCommit != "unknown" {
		t.Errorf("default GitCommit = %q, want %q", GitCommit, "unknown")
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"2.3.7.6", "2.3.7.6", 0},
		{"2.3.7", "2.3.7.0", 0},
		{"2.3.7.9", "2.3.7.6", 1},
		{"2.3.5.3", "2.3.7.6", -1},
		{"3.1", "2.3.7.6", 1},
		{"v2.3.7.6", "2.3.7.6", 0},
		{"2.3.10", "2.3.9", 1},
	}
	for _, tt := range tests {
		got, err := Compare(tt.a, tt.b)
		if err != nil {
			t.Fatalf("Compare(%q, %q): %v", tt.a, tt.b, err)
		}
		if got != tt.want {
			t.Errorf("Compare(%q, %q) = %d, want %d", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestCompareInvalid(t *testing.T) {
	for _, v := range []string{"", "2.x.7", "2..3", "-1.0"} {
		if _, err := Compare(v, "2.3.7.6"); err == nil {
			t.Errorf("Compare(%q) should fail", v)
		}
	}
}

func TestAtLeast(t *testing.T) {
	ok, err := AtLeast("2.3.7.6", "2.3.7.6")
	if err != nil || !ok {
		t.Errorf("AtLeast(equal) = %v, %v", ok, err)
	}
	ok, err = AtLeast("2.3.5.3", "2.3.7.6")
	if err != nil || ok {
		t.Errorf("AtLeast(older) = %v, %v", ok, err)
	}
}
