// Package security inspects the TLS certificates the agent depends on: the
// leaf certificate of every HTTPS detector endpoint and the agent's own mTLS
// client certificate. Certificates within 30 days of expiry are reported as
// expiring. The agent runs Audit once at startup and logs what it finds.
package security
