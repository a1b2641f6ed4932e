package security

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/formcheck/formcheck/agent/internal/config"
)

// Certificate states reported in CertStatus.Status.
const (
	StatusValid       = "valid"
	StatusExpiring    = "expiring"
	StatusExpired     = "expired"
	StatusUnreachable = "unreachable"
)

// expiringWithin is how close to NotAfter a certificate counts as expiring.
const expiringWithin = 30 * 24 * time.Hour

// CertStatus describes one certificate the agent depends on.
type CertStatus struct {
	// Owner is the session ID for detector endpoints, or "server_auth" for
	// the agent's own mTLS client certificate.
	Owner    string
	Target   string // endpoint URL or certificate file path
	Status   string
	DaysLeft int
	NotAfter time.Time
	Issuer   string
}

// CheckEndpoint dials the TLS endpoint of an http source and describes its
// leaf certificate. Returns nil for non-HTTPS endpoints.
// Uses a 10-second dial timeout so a slow host does not hold up startup.
func CheckEndpoint(ctx context.Context, owner string, src config.Source) *CertStatus {
	u, err := url.Parse(src.Endpoint)
	if err != nil || u.Scheme != "https" {
		return nil
	}

	cs := &CertStatus{Owner: owner, Target: src.Endpoint}

	host := u.Host
	if _, _, err := net.SplitHostPort(host); err != nil {
		// No explicit port in the URL; append the HTTPS default.
		host = net.JoinHostPort(host, "443")
	}

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	dialer := &tls.Dialer{
		NetDialer: &net.Dialer{},
		Config: &tls.Config{
			InsecureSkipVerify: src.TLS.InsecureSkipVerify, //nolint:gosec
		},
	}

	netConn, err := dialer.DialContext(dialCtx, "tcp", host)
	if err != nil {
		cs.Status = StatusUnreachable
		return cs
	}
	conn := netConn.(*tls.Conn)
	defer conn.Close()

	peerCerts := conn.ConnectionState().PeerCertificates
	if len(peerCerts) == 0 {
		cs.Status = StatusUnreachable
		return cs
	}
	describe(cs, peerCerts[0], time.Now())
	return cs
}

// CheckFile reads the first certificate in the PEM file at path.
func CheckFile(owner, path string, now time.Time) (*CertStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read certificate %q: %w", path, err)
	}
	block, _ := pem.Decode(data)
	if block == nil || block.Type != "CERTIFICATE" {
		return nil, errors.New("no PEM certificate in " + path)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse certificate %q: %w", path, err)
	}
	cs := &CertStatus{Owner: owner, Target: path}
	describe(cs, cert, now)
	return cs, nil
}

func describe(cs *CertStatus, cert *x509.Certificate, now time.Time) {
	left := cert.NotAfter.Sub(now)
	cs.NotAfter = cert.NotAfter.UTC()
	cs.Issuer = cert.Issuer.CommonName
	cs.DaysLeft = int(math.Floor(left.Hours() / 24))
	cs.Status = classify(left)
}

func classify(left time.Duration) string {
	switch {
	case left <= 0:
		return StatusExpired
	case left <= expiringWithin:
		return StatusExpiring
	default:
		return StatusValid
	}
}

// Audit checks every certificate cfg depends on: the mTLS client certificate
// used to reach the server and each HTTPS detector endpoint. Problems are
// logged; the returned statuses are for callers that want more.
func Audit(ctx context.Context, cfg config.AgentConfig) []CertStatus {
	var out []CertStatus

	if cfg.ServerAuth.Mode == "mtls" && cfg.ServerAuth.CertFile != "" {
		cs, err := CheckFile("server_auth", cfg.ServerAuth.CertFile, time.Now())
		if err != nil {
			slog.Warn("security: cannot inspect client certificate", "err", err)
		} else {
			out = append(out, *cs)
		}
	}

	for _, sess := range cfg.Sessions {
		if sess.Source.Type != "http" {
			continue
		}
		if cs := CheckEndpoint(ctx, sess.ID, sess.Source); cs != nil {
			out = append(out, *cs)
		}
	}

	for _, cs := range out {
		attrs := []any{"owner", cs.Owner, "target", cs.Target, "status", cs.Status}
		switch cs.Status {
		case StatusValid:
			slog.Debug("security: certificate ok", append(attrs, "days_left", cs.DaysLeft)...)
		case StatusUnreachable:
			slog.Warn("security: TLS endpoint unreachable", attrs...)
		default:
			slog.Warn("security: certificate needs renewal",
				append(attrs, "days_left", cs.DaysLeft, "not_after", cs.NotAfter)...)
		}
	}
	return out
}
