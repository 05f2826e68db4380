package validate

import (
	"errors"
	"fmt"
	"net"
	"net/netip"
	"net/url"
	"strings"
)

var (
	ErrInvalidURL       = errors.New("invalid URL format")
	ErrDisallowedScheme = errors.New("URL scheme not allowed")
	ErrSSRFRisk         = errors.New("URL poses SSRF risk")
)

// URLConstraints defines validation constraints for URLs.
type URLConstraints struct {
	AllowedSchemes []string
	BlockPrivate   bool // reject hosts that resolve to loopback, private or link-local addresses
	MaxLength      int
}

// MediaURLConstraints applies to video and thumbnail URLs.
var MediaURLConstraints = URLConstraints{
	AllowedSchemes: []string{"https", "http"},
	BlockPrivate:   true,
	MaxLength:      2048,
}

// lookupIP is replaced in tests.
var lookupIP = net.LookupIP

// URL validates urlStr against constraints.
func URL(urlStr string, c URLConstraints) (string, error) {
	urlStr = strings.TrimSpace(urlStr)
	if urlStr == "" {
		return "", ErrEmpty
	}
	if c.MaxLength > 0 && len(urlStr) > c.MaxLength {
		return "", fmt.Errorf("%w: URL exceeds %d characters", ErrStringTooLong, c.MaxLength)
	}

	u, err := url.Parse(urlStr)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if len(c.AllowedSchemes) > 0 && !contains(c.AllowedSchemes, u.Scheme) {
		return "", fmt.Errorf("%w: got %q, allowed: %v", ErrDisallowedScheme, u.Scheme, c.AllowedSchemes)
	}
	host := u.Hostname()
	if host == "" {
		return "", fmt.Errorf("%w: missing hostname", ErrInvalidURL)
	}
	if c.BlockPrivate {
		if err := checkSSRF(host); err != nil {
			return "", err
		}
	}
	return urlStr, nil
}

// MediaURL validates a public video or image URL.
func MediaURL(urlStr string) (string, error) {
	return URL(urlStr, MediaURLConstraints)
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

// checkSSRF rejects localhost and hosts resolving to non-public addresses.
// Unresolvable hosts are allowed.
func checkSSRF(host string) error {
	lower := strings.ToLower(host)
	if lower == "localhost" || strings.HasSuffix(lower, ".localhost") {
		return fmt.Errorf("%w: localhost not allowed", ErrSSRFRisk)
	}

	if addr, err := netip.ParseAddr(host); err == nil {
		if isPrivateAddr(addr) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, addr)
		}
		return nil
	}

	ips, err := lookupIP(host)
	if err != nil {
		return nil
	}
	for _, ip := range ips {
		addr, ok := netip.AddrFromSlice(ip)
		if ok && isPrivateAddr(addr.Unmap()) {
			return fmt.Errorf("%w: private IP address %s", ErrSSRFRisk, ip)
		}
	}
	return nil
}

func isPrivateAddr(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
