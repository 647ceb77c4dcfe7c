// Package ipnet provides the reverse-IP and CIDR-containment primitives
// shared by the single-RBL resolver, the aggregate executor, and the
// custom-RBL store.
package ipnet

import (
	"net"
	"strconv"
	"strings"
)

// ReverseIPv4 returns the dotted-decimal octets of ip in reverse order,
// e.g. "127.0.0.2" becomes "2.0.0.127". ip must be a valid IPv4 address.
func ReverseIPv4(ip net.IP) string {
	v4 := ip.To4()
	if v4 == nil {
		return ""
	}

	return strconv.Itoa(int(v4[3])) + "." + strconv.Itoa(int(v4[2])) + "." +
		strconv.Itoa(int(v4[1])) + "." + strconv.Itoa(int(v4[0]))
}

// ReverseIPv6 expands ip to its 32 lowercase hex nibbles and emits them
// dot-joined in reverse order, the nibble-reversed form RBL zones expect
// under an IPv6-capable suffix.
func ReverseIPv6(ip net.IP) string {
	v6 := ip.To16()
	if v6 == nil {
		return ""
	}

	nibbles := make([]string, 0, 32)
	for _, b := range v6 {
		hi := "0123456789abcdef"[b>>4]
		lo := "0123456789abcdef"[b&0x0f]
		nibbles = append(nibbles, string(hi), string(lo))
	}

	for i, j := 0, len(nibbles)-1; i < j; i, j = i+1, j-1 {
		nibbles[i], nibbles[j] = nibbles[j], nibbles[i]
	}

	return strings.Join(nibbles, ".")
}

// Reverse dispatches to ReverseIPv4 or ReverseIPv6 based on the address family.
func Reverse(ip net.IP) string {
	if ip.To4() != nil {
		return ReverseIPv4(ip)
	}
	return ReverseIPv6(ip)
}

// ParseReverse strips suffix (and its separating dot) from name and, if
// the remainder is a well-formed reversed-octet (IPv4) or reversed-nibble
// (IPv6) address, returns the canonical address. It returns nil if name
// does not end in suffix or the remainder isn't a valid reversed address.
func ParseReverse(name, suffix string) net.IP {
	name = strings.TrimSuffix(name, ".")
	suffix = strings.TrimSuffix(suffix, ".")

	if suffix == "" {
		return nil
	}

	if !strings.HasSuffix(name, "."+suffix) && name != suffix {
		return nil
	}

	prefix := strings.TrimSuffix(name, suffix)
	prefix = strings.TrimSuffix(prefix, ".")
	if prefix == "" {
		return nil
	}

	if ip := parseReversedV4(prefix); ip != nil {
		return ip
	}

	return parseReversedV6(prefix)
}

// parseReversedV4 parses "d.c.b.a" into the IPv4 address "a.b.c.d".
func parseReversedV4(prefix string) net.IP {
	octets := strings.Split(prefix, ".")
	if len(octets) != 4 {
		return nil
	}

	for i, j := 0, len(octets)-1; i < j; i, j = i+1, j-1 {
		octets[i], octets[j] = octets[j], octets[i]
	}

	for _, o := range octets {
		n, err := strconv.Atoi(o)
		if err != nil || n < 0 || n > 255 || (len(o) > 1 && o[0] == '0') {
			return nil
		}
	}

	ip := net.ParseIP(strings.Join(octets, "."))
	if ip == nil || ip.To4() == nil {
		return nil
	}

	return ip.To4()
}

// parseReversedV6 parses 32 reversed hex nibbles into the canonical IPv6 address.
func parseReversedV6(prefix string) net.IP {
	nibbles := strings.Split(prefix, ".")
	if len(nibbles) != 32 {
		return nil
	}

	for i, j := 0, len(nibbles)-1; i < j; i, j = i+1, j-1 {
		nibbles[i], nibbles[j] = nibbles[j], nibbles[i]
	}

	var b strings.Builder
	for i, n := range nibbles {
		if len(n) != 1 || !isHexDigit(n[0]) {
			return nil
		}
		if i > 0 && i%4 == 0 {
			b.WriteByte(':')
		}
		b.WriteString(n)
	}

	ip := net.ParseIP(b.String())
	if ip == nil || ip.To4() != nil {
		return nil
	}

	return ip.To16()
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')
}

// Canonical returns the canonical string form of ip: dotted-decimal for
// IPv4, fully expanded lowercase colon-hex for IPv6. Two lexical
// representations of the same address always canonicalise equal.
func Canonical(ip net.IP) string {
	if v4 := ip.To4(); v4 != nil {
		return v4.String()
	}

	v6 := ip.To16()
	if v6 == nil {
		return ip.String()
	}

	segs := make([]string, 8)
	for i := 0; i < 8; i++ {
		segs[i] = strconv.FormatUint(uint64(v6[i*2])<<8|uint64(v6[i*2+1]), 16)
		for len(segs[i]) < 4 {
			segs[i] = "0" + segs[i]
		}
	}

	return strings.Join(segs, ":")
}
