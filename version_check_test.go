package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCheck(t *testing.T) {
	var gotETag, gotAgent string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotETag = r.Header.Get("If-None-Match")
		gotAgent = r.Header.Get("User-Agent")
		if gotETag == `"abc"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"abc"`)
		_, _ = w.Write([]byte(`{"tag_name":"v1.2.0","draft":false,"prerelease":false}`))
	}))
	defer ts.Close()

	vc := newVersionChecker(ts.URL, ts.Client())
	require.True(t, vc.check())
	assert.Empty(t, gotETag)
	assert.Equal(t, "hearingai/"+Version, gotAgent)
	assert.Equal(t, "1.2.0", vc.Info().Latest)

	require.True(t, vc.check())
	assert.Equal(t, `"abc"`, gotETag, "second request is conditional")
	assert.Equal(t, "1.2.0", vc.Info().Latest)
}

func TestVersionCheckResponses(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		ok     bool
		latest string
	}{
		{"release", http.StatusOK, `{"tag_name":"v2.0.0"}`, true, "2.0.0"},
		{"prerelease ignored", http.StatusOK, `{"tag_name":"v3.0.0-rc1","prerelease":true}`, true, ""},
		{"draft ignored", http.StatusOK, `{"tag_name":"v3.0.0","draft":true}`, true, ""},
		{"missing tag", http.StatusOK, `{}`, false, ""},
		{"bad json", http.StatusOK, `{`, false, ""},
		{"no releases", http.StatusNotFound, ``, true, ""},
		{"rate limited", http.StatusTooManyRequests, ``, false, ""},
		{"forbidden", http.StatusForbidden, ``, false, ""},
		{"server error", http.StatusBadGateway, ``, false, ""},
		{"client error", http.StatusBadRequest, ``, true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer ts.Close()

			vc := newVersionChecker(ts.URL, ts.Client())
			assert.Equal(t, tt.ok, vc.check())
			assert.Equal(t, tt.latest, vc.Info().Latest)
		})
	}
}

func TestVersionInfoUpdateAvailable(t *testing.T) {
	orig := Version
	t.Cleanup(func() { Version = orig })

	tests := []struct {
		name    string
		current string
		latest  string
		want    bool
	}{
		{"newer release", "v1.0.0", "1.1.0", true},
		{"same release", "1.1.0", "1.1.0", false},
		{"older release", "1.2.0", "1.1.0", false},
		{"dev build", "dev", "9.9.9", false},
		{"not checked yet", "1.0.0", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			Version = tt.current
			vc := newVersionChecker("", http.DefaultClient)
			vc.latest = tt.latest
			assert.Equal(t, tt.want, vc.Info().UpdateAvail)
		})
	}
}

func TestBuildTime(t *testing.T) {
	assert.Equal(t, "unknown", buildTime("unknown"))
	assert.NotEqual(t, "2024-05-01T12:00:00Z", buildTime("2024-05-01T12:00:00Z"))
}

func TestVersionCheckerStopIsIdempotent(t *testing.T) {
	vc := newVersionChecker("", http.DefaultClient)
	vc.Stop()
	vc.Stop()
}
