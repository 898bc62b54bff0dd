// Package artifacts confirms snapshot and clip availability against the
// Frigate HTTP API before an alert is published.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	feplog "github.com/rgregg/frigate-event-processor/internal/log"
	"github.com/rgregg/frigate-event-processor/internal/metrics"
)

var (
	// ErrSnapshotUnavailable marks a snapshot Frigate does not (yet) have.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrClipUnavailable marks a clip Frigate does not (yet) have.
	ErrClipUnavailable = errors.New("clip unavailable")
)

// Client talks to the Frigate events API. A HEAD request is enough to
// learn whether an artifact exists.
type Client struct {
	base   string
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a client for the given base URL, e.g. "http://frigate:5000".
func NewClient(base string) *Client {
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: feplog.WithComponent("artifacts"),
	}
}

// SnapshotAvailable reports whether the event's snapshot exists.
// 200 means available, 404 means not yet; everything else is a transient
// error worth retrying.
func (c *Client) SnapshotAvailable(ctx context.Context, eventID string) (bool, error) {
	return c.head(ctx, "snapshot", "/api/events/"+eventID+"/snapshot.jpg")
}

// ClipAvailable reports whether the event's clip exists.
func (c *Client) ClipAvailable(ctx context.Context, eventID string) (bool, error) {
	return c.head(ctx, "clip", "/api/events/"+eventID+"/clip.mp4")
}

func (c *Client) head(ctx context.Context, artifact, path string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base+path, nil)
	if err != nil {
		return false, err
	}
	res, err := c.http.Do(req)
	if err != nil {
		metrics.RecordArtifactCheck(artifact, "error")
		return false, err
	}
	defer res.Body.Close() //nolint:errcheck
	switch res.StatusCode {
	case http.StatusOK:
		metrics.RecordArtifactCheck(artifact, "ok")
		return true, nil
	case http.StatusNotFound:
		metrics.RecordArtifactCheck(artifact, "missing")
		return false, nil
	default:
		metrics.RecordArtifactCheck(artifact, "error")
		return false, fmt.Errorf("frigate %s check: unexpected status %d", artifact, res.StatusCode)
	}
}

// Confirm blocks until every required artifact is reachable or ctx
// expires. Missing artifacts and transient HTTP errors are retried with
// exponential backoff; the returned error wraps ErrSnapshotUnavailable or
// ErrClipUnavailable so the caller can name the missing piece.
func (c *Client) Confirm(ctx context.Context, eventID string, needSnapshot, needClip bool) error {
	var lastErr error
	check := func() (struct{}, error) {
		if needSnapshot {
			ok, err := c.SnapshotAvailable(ctx, eventID)
			if err == nil && !ok {
				err = fmt.Errorf("event %s: %w", eventID, ErrSnapshotUnavailable)
			}
			if err != nil {
				lastErr = err
				return struct{}{}, err
			}
		}
		if needClip {
			ok, err := c.ClipAvailable(ctx, eventID)
			if err == nil && !ok {
				err = fmt.Errorf("event %s: %w", eventID, ErrClipUnavailable)
			}
			if err != nil {
				lastErr = err
				return struct{}{}, err
			}
		}
		return struct{}{}, nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 4 * time.Second

	_, err := backoff.Retry(ctx, check, backoff.WithBackOff(bo))
	if err != nil && lastErr != nil {
		// The retry loop surfaces the context error on timeout; the last
		// check result names what was actually missing.
		err = lastErr
	}
	if err != nil {
		c.logger.Debug().
			Err(err).
			Str(feplog.FieldEventID, eventID).
			Str("event", "artifacts.confirm_failed").
			Msg("artifact confirmation gave up")
	}
	return err
}
