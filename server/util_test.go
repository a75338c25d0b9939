package server

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSanitizeNext(t *testing.T) {
	tests := []struct {
		name string
		next string
		want string
	}{
		{"local path", "/admin/dashboard", "/admin/dashboard"},
		{"local path with query", "/admin/dashboard?tab=events", "/admin/dashboard?tab=events"},
		{"empty", "", ""},
		{"absolute url", "https://evil.example/", ""},
		{"scheme relative", "//evil.example/phish", ""},
		{"backslash trick", "/\\evil.example", ""},
		{"login loop", "/login", ""},
		{"logout loop", "/logout?x=1", ""},
		{"relative path", "admin/dashboard", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, sanitizeNext(tt.next))
		})
	}
}
