package source

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/formcheck/formcheck/agent/internal/config"
	"github.com/formcheck/formcheck/pkg/pose"
)

const defaultFetchTimeout = 5 * time.Second

// Sample is one frame read from a source.
type Sample struct {
	SessionID  string
	Frame      pose.Frame
	CapturedAt time.Time

	// Reset is set when the upstream restarted the session; the stability
	// history must be discarded before this frame is analyzed.
	Reset bool

	// Err is non-nil if this frame could not be read or decoded. Frame is
	// empty in that case.
	Err error
}

// Source produces the frames of one session.
type Source interface {
	// Next blocks until a frame is available. It returns io.EOF when the
	// source is exhausted and ctx.Err() when ctx is cancelled.
	Next(ctx context.Context) (*Sample, error)
	Close() error
}

// New returns the appropriate Source for the session's configuration.
func New(sess config.Session, pollInterval time.Duration) (Source, error) {
	switch sess.Source.Type {
	case "jsonl":
		return openJSONL(sess.ID, sess.Source.Path)
	case "http":
		client, err := buildHTTPClient(sess.Source)
		if err != nil {
			return nil, fmt.Errorf("source %q: build http client: %w", sess.ID, err)
		}
		return newHTTPSource(sess.ID, sess.Source.Endpoint, client, pollInterval), nil
	default:
		return nil, fmt.Errorf("source: unsupported type %q", sess.Source.Type)
	}
}

// wireFrame is the JSON form of one detector frame.
type wireFrame struct {
	TimestampMs int64      `json:"timestamp_ms"`
	Reset       bool       `json:"reset"`
	Landmarks   pose.Frame `json:"landmarks"`
}

// decodeSample parses one wire frame. now stamps frames that carry no
// timestamp of their own.
func decodeSample(sessionID string, data []byte, now time.Time) *Sample {
	s := &Sample{SessionID: sessionID, CapturedAt: now}

	var wf wireFrame
	if err := json.Unmarshal(data, &wf); err != nil {
		s.Err = fmt.Errorf("decode frame: %w", err)
		return s
	}
	if wf.TimestampMs > 0 {
		s.CapturedAt = time.UnixMilli(wf.TimestampMs).UTC()
	}
	// Landmarks past the topology are never indexed, so longer frames are
	// analyzed as they are.
	s.Frame = wf.Landmarks
	s.Reset = wf.Reset
	return s
}

// authRoundTripper injects authentication headers into every outgoing request.
type authRoundTripper struct {
	base http.RoundTripper
	auth config.AuthConfig
}

func (t *authRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	switch t.auth.Mode {
	case "apikey":
		req = req.Clone(req.Context())
		req.Header.Set(t.auth.Header, t.auth.Key())
	case "bearer":
		req = req.Clone(req.Context())
		req.Header.Set("Authorization", "Bearer "+t.auth.Token())
	case "basic":
		req = req.Clone(req.Context())
		req.SetBasicAuth(t.auth.Username, t.auth.Password())
	}
	return t.base.RoundTrip(req)
}

// buildHTTPClient constructs an http.Client for the source's auth and TLS settings.
func buildHTTPClient(src config.Source) (*http.Client, error) {
	if src.Auth.Mode == "apikey" && src.Auth.Header == "" {
		return nil, fmt.Errorf("apikey auth needs a header name")
	}
	tlsCfg := &tls.Config{
		InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec // user-configured
	}
	return &http.Client{
		Transport: &authRoundTripper{
			base: &http.Transport{TLSClientConfig: tlsCfg},
			auth: src.Auth,
		},
		Timeout: defaultFetchTimeout,
	}, nil
}
