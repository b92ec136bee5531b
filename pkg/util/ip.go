package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const maxASN = 4294967295 // max uint32, 4-byte ASN range

// reservedVLANs cannot be used for fabric handoffs: the default VLAN, the
// legacy FDDI/Token Ring range, and the controller's internal VLANs.
var reservedVLANs = map[int]bool{
	1: true, 1002: true, 1003: true, 1004: true, 1005: true, 2046: true, 4094: true,
}

// IsValidIPv4 checks if a string is a valid IPv4 address
func IsValidIPv4(ipStr string) bool {
	ip := net.ParseIP(ipStr)
	return ip != nil && ip.To4() != nil
}

// IsValidIPv4CIDR checks if a string is a valid IPv4 CIDR notation
func IsValidIPv4CIDR(cidr string) bool {
	ip, _, err := net.ParseCIDR(cidr)
	return err == nil && ip.To4() != nil
}

// IsValidIPv6CIDR checks if a string is a valid IPv6 CIDR notation
func IsValidIPv6CIDR(cidr string) bool {
	ip, _, err := net.ParseCIDR(cidr)
	return err == nil && ip.To4() == nil
}

// ValidateASN accepts a plain AS number (1 to 4294967295) or asdot
// notation "A.B" with A in 1-65535 and B in 0-65535.
func ValidateASN(asn string) error {
	asn = strings.TrimSpace(asn)
	if asn == "" {
		return fmt.Errorf("AS number must not be empty")
	}
	if high, low, dotted := strings.Cut(asn, "."); dotted {
		h, err := strconv.ParseUint(high, 10, 32)
		if err != nil || h < 1 || h > 65535 {
			return fmt.Errorf("AS number %q: high part must be between 1 and 65535", asn)
		}
		l, err := strconv.ParseUint(low, 10, 32)
		if err != nil || l > 65535 {
			return fmt.Errorf("AS number %q: low part must be between 0 and 65535", asn)
		}
		return nil
	}
	n, err := strconv.ParseUint(asn, 10, 64)
	if err != nil {
		return fmt.Errorf("AS number %q must be an integer or in A.B notation", asn)
	}
	if n < 1 || n > maxASN {
		return fmt.Errorf("AS number must be between 1 and %d, got %d", maxASN, n)
	}
	return nil
}

// ValidateVLAN checks a handoff VLAN id: 2-4093, excluding reserved VLANs.
func ValidateVLAN(id int) error {
	if id < 2 || id > 4094 {
		return fmt.Errorf("VLAN ID must be between 2 and 4093, got %d", id)
	}
	if reservedVLANs[id] {
		return fmt.Errorf("VLAN ID %d is reserved", id)
	}
	return nil
}

// ValidateRange checks that v lies within [lo, hi].
func ValidateRange(name string, v, lo, hi int64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be between %d and %d, got %d", name, lo, hi, v)
	}
	return nil
}
