package shipper

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/formcheck/formcheck/agent/internal/config"
	"github.com/formcheck/formcheck/pkg/rpc"
	"github.com/formcheck/formcheck/pkg/types"
)

const (
	backoffInitial    = 1 * time.Second
	backoffMax        = 60 * time.Second
	backoffMultiplier = 2.0
	sendTimeout       = 10 * time.Second
)

// Shipper buffers analysis records and ships them to formcheck-server via gRPC.
// Ship() is non-blocking; when the buffer is full the oldest record is evicted.
// Run() must be called in a goroutine to drain the buffer and handle reconnection.
type Shipper struct {
	cfg    config.AgentConfig
	buf    chan *types.AnalysisRecord
	dialFn dialFunc // injectable for tests

	delivered atomic.Uint64
	dropped   atomic.Uint64
}

// Stats counts records since the Shipper was created.
type Stats struct {
	Delivered uint64
	Dropped   uint64
	Buffered  int
}

// dialFunc is the function signature used to open a gRPC connection.
type dialFunc func(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error)

// New creates a Shipper using the given agent config.
func New(cfg config.AgentConfig) *Shipper {
	return &Shipper{
		cfg:    cfg,
		buf:    make(chan *types.AnalysisRecord, cfg.BufferSize),
		dialFn: defaultDial,
	}
}

// Ship enqueues rec. If the buffer is full the oldest entry is evicted to
// make room, so the server always sees the most recent frames.
func (s *Shipper) Ship(rec *types.AnalysisRecord) {
	for {
		select {
		case s.buf <- rec:
			return
		default:
		}
		select {
		case old := <-s.buf:
			s.dropped.Add(1)
			slog.Warn("shipper: buffer full, evicted oldest record",
				"session", old.SessionID, "sequence", old.Sequence, "buffer_cap", cap(s.buf))
		default:
		}
	}
}

// Stats returns delivery counters.
func (s *Shipper) Stats() Stats {
	return Stats{
		Delivered: s.delivered.Load(),
		Dropped:   s.dropped.Load(),
		Buffered:  len(s.buf),
	}
}

// Run drains the buffer, sending records to the server.
// It reconnects with exponential backoff when the connection is lost.
// Run blocks until ctx is cancelled.
func (s *Shipper) Run(ctx context.Context) {
	bo := newBackoff()

	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := s.dialFn(ctx, s.cfg.ServerEndpoint, s.cfg)
		if err != nil {
			wait := bo.next()
			slog.Error("shipper: dial failed, will retry",
				"endpoint", s.cfg.ServerEndpoint,
				"err", err,
				"retry_in", wait)
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
				continue
			}
		}

		slog.Info("shipper: connected", "endpoint", s.cfg.ServerEndpoint)
		bo.reset()

		err = s.drain(ctx, conn)
		conn.Close()

		if ctx.Err() != nil {
			return
		}

		wait := bo.next()
		slog.Warn("shipper: connection lost, will reconnect",
			"endpoint", s.cfg.ServerEndpoint,
			"err", err,
			"retry_in", wait)
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// drain reads from the buffer and sends records until the connection fails
// or ctx is cancelled.
func (s *Shipper) drain(ctx context.Context, conn *grpc.ClientConn) error {
	client := rpc.NewResultServiceClient(conn)

	for {
		select {
		case <-ctx.Done():
			return nil

		case rec := <-s.buf:
			sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
			if s.cfg.ServerAuth.Mode == "apikey" && s.cfg.ServerAuth.KeyEnv != "" {
				sendCtx = metadata.AppendToOutgoingContext(
					sendCtx,
					s.cfg.ServerAuth.Header, s.cfg.ServerAuth.Key(),
				)
			}

			resp, err := client.SendResult(sendCtx, rec)
			cancel()

			if err != nil {
				// The record itself is bad or we are not allowed to send it;
				// retrying cannot help.
				if isPermanentError(err) {
					s.dropped.Add(1)
					slog.Error("shipper: permanent send error, discarding record",
						"session", rec.SessionID, "sequence", rec.Sequence, "err", err)
					continue
				}
				s.requeue(rec)
				return fmt.Errorf("send: %w", err)
			}

			if !resp.Ok {
				s.dropped.Add(1)
				slog.Warn("shipper: server rejected record",
					"session", rec.SessionID, "message", resp.Message)
				continue
			}
			s.delivered.Add(1)
			slog.Debug("shipper: record delivered", "session", rec.SessionID, "sequence", rec.Sequence)
		}
	}
}

// requeue puts rec back for the next connection if there is room. Newer
// records win over a retried one.
func (s *Shipper) requeue(rec *types.AnalysisRecord) {
	select {
	case s.buf <- rec:
	default:
		s.dropped.Add(1)
	}
}

// isPermanentError returns true for gRPC errors that indicate the record
// itself is invalid and should not be retried.
func isPermanentError(err error) bool {
	switch status.Code(err) {
	case codes.InvalidArgument, codes.Unauthenticated, codes.PermissionDenied:
		return true
	}
	return false
}

// defaultDial opens a gRPC connection to endpoint with auth configured from cfg.
func defaultDial(ctx context.Context, endpoint string, cfg config.AgentConfig) (*grpc.ClientConn, error) {
	opts, err := dialOptions(cfg)
	if err != nil {
		return nil, err
	}
	return grpc.DialContext(ctx, endpoint, opts...) //nolint:staticcheck // deprecated in 1.63 but DialContext is used for compat
}

// dialOptions builds grpc.DialOption slice based on the server auth config.
func dialOptions(cfg config.AgentConfig) ([]grpc.DialOption, error) {
	if cfg.ServerAuth.Mode == "mtls" {
		creds, err := buildMTLSCreds(cfg.ServerAuth)
		if err != nil {
			return nil, fmt.Errorf("shipper: build mtls creds: %w", err)
		}
		return []grpc.DialOption{grpc.WithTransportCredentials(creds)}, nil
	}
	// "apikey" sends its key per call in drain(); "none" is for local dev.
	return []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, nil
}

// buildMTLSCreds loads client certificate and optional CA from the auth config.
func buildMTLSCreds(auth config.AuthConfig) (credentials.TransportCredentials, error) {
	cert, err := tls.LoadX509KeyPair(auth.CertFile, auth.KeyFile)
	if err != nil {
		return nil, fmt.Errorf("load client cert: %w", err)
	}

	tlsCfg := &tls.Config{
		Certificates: []tls.Certificate{cert},
	}

	if auth.CAFile != "" {
		caPEM, err := os.ReadFile(auth.CAFile)
		if err != nil {
			return nil, fmt.Errorf("read ca file: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caPEM) {
			return nil, fmt.Errorf("no valid certs in ca file %q", auth.CAFile)
		}
		tlsCfg.RootCAs = pool
	}

	return credentials.NewTLS(tlsCfg), nil
}

// backoff implements truncated exponential backoff with jitter.
type backoff struct {
	current time.Duration
}

func newBackoff() *backoff {
	return &backoff{current: backoffInitial}
}

// next returns the current backoff duration and advances the internal state.
func (b *backoff) next() time.Duration {
	d := b.current
	// ±25 % jitter.
	jitter := time.Duration(float64(b.current) * 0.25 * (rand.Float64()*2 - 1)) //nolint:gosec // not crypto
	d += jitter
	if d < 0 {
		d = 0
	}

	b.current = time.Duration(float64(b.current) * backoffMultiplier)
	if b.current > backoffMax {
		b.current = backoffMax
	}
	return d
}

func (b *backoff) reset() {
	b.current = backoffInitial
}
