// Package privacy provides helpers for reducing personal data before it
// reaches logs and audit records.
package privacy

import (
	"net"
	"strings"
)

// AnonymizeIP masks the host portion of an IP address so logged values
// cannot identify an individual client. IPv4 addresses are truncated to /24,
// IPv6 addresses to /48. Values that do not parse as an IP are returned
// unchanged; upstream validation decides whether to log them at all.
func AnonymizeIP(ip string) string {
	trimmed := strings.TrimSpace(ip)
	parsed := net.ParseIP(trimmed)
	if parsed == nil {
		return ip
	}

	if v4 := parsed.To4(); v4 != nil {
		masked := v4.Mask(net.CIDRMask(24, 32))
		return masked.String()
	}

	masked := parsed.Mask(net.CIDRMask(48, 128))
	return masked.String()
}
