package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobIDFromPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		wantID   string
		wantRest string
	}{
		{"collection root", "/api/jobs/", "", ""},
		{"id only", "/api/jobs/abc12345", "abc12345", ""},
		{"id with action", "/api/jobs/abc12345/stream", "abc12345", "stream"},
		{"trailing slash", "/api/jobs/abc12345/cancel/", "abc12345", "cancel"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, rest := JobIDFromPath(tt.path, "/api/jobs/")
			assert.Equal(t, tt.wantID, id)
			assert.Equal(t, tt.wantRest, rest)
		})
	}
}

func TestUserIDDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/api/jobs", nil)
	assert.Equal(t, "default", UserID(r))

	r.Header.Set("X-User-ID", "alice")
	assert.Equal(t, "alice", UserID(r))
}
