package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		forwarded  string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "203.0.113.7:54321",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header ignored by default",
			remoteAddr: "203.0.113.7:54321",
			forwarded:  "198.51.100.1",
			want:       "203.0.113.7",
		},
		{
			name:       "forwarded header honored when trusted",
			trustProxy: true,
			remoteAddr: "10.0.0.1:54321",
			forwarded:  "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "first hop wins in forwarded chain",
			trustProxy: true,
			remoteAddr: "10.0.0.1:54321",
			forwarded:  "198.51.100.1, 10.0.0.2, 10.0.0.3",
			want:       "198.51.100.1",
		},
		{
			name:       "trusted but no header falls back",
			trustProxy: true,
			remoteAddr: "203.0.113.7:54321",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &Middleware{trustProxy: tt.trustProxy}

			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				r.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			require.Equal(t, tt.want, m.clientIP(r))
		})
	}
}

func TestUserFromMissing(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	require.Nil(t, userFrom(r))
	require.Nil(t, sessionFrom(r))
}
