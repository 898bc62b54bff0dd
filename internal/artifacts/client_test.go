// SPDX-License-Identifier: MIT
package artifacts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotAvailable(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		want    bool
		wantErr bool
	}{
		{"exists", http.StatusOK, true, false},
		{"not yet", http.StatusNotFound, false, false},
		{"server error", http.StatusInternalServerError, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodHead, r.Method)
				assert.Equal(t, "/api/events/1718-abc/snapshot.jpg", r.URL.Path)
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			ok, err := NewClient(srv.URL).SnapshotAvailable(context.Background(), "1718-abc")
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestClipAvailablePath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ok, err := NewClient(srv.URL).ClipAvailable(context.Background(), "ev-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/api/events/ev-1/clip.mp4", gotPath)
}

func TestConfirmAllArtifactsPresent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).Confirm(context.Background(), "ev-1", true, true)
	require.NoError(t, err)
}

func TestConfirmNamesMissingArtifact(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Snapshot exists, the clip never shows up.
		if r.URL.Path == "/api/events/ev-1/snapshot.jpg" {
			w.WriteHeader(http.StatusOK)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	err := NewClient(srv.URL).Confirm(ctx, "ev-1", true, true)
	require.ErrorIs(t, err, ErrClipUnavailable)
}

func TestConfirmRetriesUntilArtifactArrives(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := NewClient(srv.URL).Confirm(ctx, "ev-1", true, false)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, calls, 2)
}
