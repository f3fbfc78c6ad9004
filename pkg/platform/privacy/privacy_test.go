package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAnonymizeIP(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"IPv4 masks last octet", "203.0.113.42", "203.0.113.0"},
		{"IPv4 already masked", "10.1.2.0", "10.1.2.0"},
		{"IPv6 masks to /48", "2001:db8:abcd:1234:5678:9abc:def0:1", "2001:db8:abcd::"},
		{"loopback", "127.0.0.1", "127.0.0.0"},
		{"whitespace tolerated", " 192.168.7.9 ", "192.168.7.0"},
		{"not an IP returned unchanged", "unknown", "unknown"},
		{"empty returned unchanged", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AnonymizeIP(tt.input))
		})
	}
}
