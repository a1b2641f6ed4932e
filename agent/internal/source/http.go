package source

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// maxBodyBytes bounds one detector response.
const maxBodyBytes = 1 << 20

// httpSource polls a detector endpoint for its latest frame. A 204 response
// means no new frame is ready and the poll is retried on the next tick.
type httpSource struct {
	id       string
	endpoint string
	client   *http.Client
	interval time.Duration
	ticker   *time.Ticker
}

func newHTTPSource(id, endpoint string, client *http.Client, interval time.Duration) *httpSource {
	return &httpSource{
		id:       id,
		endpoint: endpoint,
		client:   client,
		interval: interval,
	}
}

// Next waits for the next poll tick and fetches one frame. Transport and
// decode failures are reported through Sample.Err; the source never ends
// on its own.
func (s *httpSource) Next(ctx context.Context) (*Sample, error) {
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.interval)
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.ticker.C:
		}

		data, status, err := s.fetch(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			slog.Warn("source: detector fetch failed", "session", s.id, "err", err)
			return &Sample{SessionID: s.id, CapturedAt: time.Now().UTC(), Err: err}, nil
		}
		if status == http.StatusNoContent {
			continue
		}
		return decodeSample(s.id, data, time.Now().UTC()), nil
	}
}

func (s *httpSource) fetch(ctx context.Context) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return nil, resp.StatusCode, nil
	default:
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("read body: %w", err)
	}
	return data, resp.StatusCode, nil
}

func (s *httpSource) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	s.client.CloseIdleConnections()
	return nil
}
