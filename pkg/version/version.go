// Package version holds build metadata and compares dotted controller
// release strings such as "2.3.7.6".
package version

import (
	"fmt"
	"strconv"
	"strings"
)

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/newtcc/pkg/version.Version=v1.0.0 \
//	  -X github.com/newtron-network/newtcc/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/newtcc/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

// Compare compares two dotted release strings numerically. Missing
// components count as zero, so "2.3.7" == "2.3.7.0". It returns -1, 0 or 1.
func Compare(a, b string) (int, error) {
	pa, err := parse(a)
	if err != nil {
		return 0, err
	}
	pb, err := parse(b)
	if err != nil {
		return 0, err
	}
	for len(pa) < len(pb) {
		pa = append(pa, 0)
	}
	for len(pb) < len(pa) {
		pb = append(pb, 0)
	}
	for i := range pa {
		switch {
		case pa[i] < pb[i]:
			return -1, nil
		case pa[i] > pb[i]:
			return 1, nil
		}
	}
	return 0, nil
}

// AtLeast reports whether have >= min.
func AtLeast(have, min string) (bool, error) {
	c, err := Compare(have, min)
	if err != nil {
		return false, err
	}
	return c >= 0, nil
}

func parse(v string) ([]int, error) {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	if v == "" {
		return nil, fmt.Errorf("empty version")
	}
	parts := strings.Split(v, ".")
	out := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid version %q", v)
		}
		out[i] = n
	}
	return out, nil
}
