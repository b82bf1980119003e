package health

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeErrorMessage(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
		{
			name:     "unix config path",
			input:    "failed to open /etc/gateway/config.json",
			expected: "failed to open [PATH]",
		},
		{
			name:     "windows path",
			input:    "cannot read C:\\Users\\Admin\\config.json",
			expected: "cannot read [PATH]",
		},
		{
			name:     "http url",
			input:    "connection failed to https://api.example.com/v1/health",
			expected: "connection failed to [URL]",
		},
		{
			name:     "broker url",
			input:    "cannot connect to nats://localhost:4222",
			expected: "cannot connect to [URL]",
		},
		{
			name:     "websocket url",
			input:    "dial failed for wss://gateway.example.com/stream",
			expected: "dial failed for [URL]",
		},
		{
			name:     "ip address",
			input:    "timeout connecting to 192.168.1.100",
			expected: "timeout connecting to [IP]",
		},
		{
			name:     "port number",
			input:    "failed to bind to :8080",
			expected: "failed to bind to [PORT]",
		},
		{
			name:     "credentials",
			input:    "auth failed with password:secretpass123",
			expected: "auth failed with [REDACTED]",
		},
		{
			name:     "url plus credentials",
			input:    "failed to connect to https://192.168.1.1:8080/api with token=abc123def",
			expected: "failed to connect to [URL] with [REDACTED]",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeErrorMessage(tt.input))
		})
	}
}

func TestWithSubStatus_SliceIsolation(t *testing.T) {
	original := Status{
		Component: "gateway",
		Status:    "healthy",
		SubStatuses: []Status{
			{Component: "session-manager", Status: "healthy"},
		},
	}

	modified := original.WithSubStatus(Status{
		Component: "nats",
		Status:    "unhealthy",
	})

	assert.Len(t, original.SubStatuses, 1)
	assert.Len(t, modified.SubStatuses, 2)
	assert.Equal(t, "session-manager", modified.SubStatuses[0].Component)
	assert.Equal(t, "nats", modified.SubStatuses[1].Component)

	// No shared backing array between the two slices.
	original.SubStatuses[0].Status = "degraded"
	assert.Equal(t, "healthy", modified.SubStatuses[0].Status)
}
