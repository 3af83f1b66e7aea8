// Package auth implements the peer authentication guard for the
// privileged helper.
//
// The guard is fail-secure: a peer is served only when every identity
// check passes, and any gathering or verification error is treated
// exactly like an explicit mismatch. There is no partial-trust state.
package auth

import (
	"errors"
	"fmt"
	"net"

	"github.com/justapithecus/freetracer/log"
	"github.com/justapithecus/freetracer/metrics"
)

// ErrAuthenticationDenied is the sentinel wrapped by every denial.
var ErrAuthenticationDenied = errors.New("authentication denied")

// Check names one of the identity checks.
type Check string

// The four required checks. All must pass.
const (
	// CheckSignature verifies the peer binary is the expected,
	// unmodified build (content digest of the peer executable).
	CheckSignature Check = "signature"
	// CheckIdentifier verifies the peer presents the single expected
	// client identifier (executable base name).
	CheckIdentifier Check = "identifier"
	// CheckAuthority verifies the peer binary was installed by the
	// expected authority (trusted install directory).
	CheckAuthority Check = "authority"
	// CheckSessionUser verifies the peer's effective user is the
	// interactive user owning the session; elevated or mismatched
	// identities are rejected.
	CheckSessionUser Check = "session_user"
	// CheckCredentials covers failures gathering peer credentials at
	// all; reported when no individual check could run.
	CheckCredentials Check = "credentials"
)

// PeerIdentity is the identity of a connecting peer as gathered by a
// CredentialSource. Field values come from the kernel and the process
// filesystem, never from the peer's own messages.
type PeerIdentity struct {
	// UID is the peer's effective user id.
	UID uint32
	// PID is the peer's process id.
	PID int32
	// Digest is the lowercase hex SHA-256 of the peer executable.
	Digest string
	// Identifier is the peer executable's base name.
	Identifier string
	// Authority is the directory the peer executable runs from.
	Authority string
}

// Expected is the single acceptable client identity.
type Expected struct {
	// Digest is the expected executable digest.
	Digest string
	// Identifier is the expected client identifier.
	Identifier string
	// Authority is the expected install directory.
	Authority string
	// SessionUID is the uid of the interactive session owner.
	SessionUID uint32
}

// Decision is the outcome of a verification.
type Decision struct {
	// Allowed is true only when every check passed.
	Allowed bool
	// Failed names the first failing check when denied.
	Failed Check
}

// DeniedError reports which check denied a peer.
type DeniedError struct {
	Check Check
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("authentication denied: %s check failed", e.Check)
}

func (e *DeniedError) Unwrap() error {
	return ErrAuthenticationDenied
}

// CredentialSource gathers the identity of a connected peer.
// Production wiring uses the SO_PEERCRED source; tests inject
// synthetic identities.
type CredentialSource interface {
	Identity(conn net.Conn) (*PeerIdentity, error)
}

// Guard verifies peer identities against the expected client identity.
// It implements ipc.Authorizer.
type Guard struct {
	expected Expected
	source   CredentialSource
	logger   *log.Logger
	metrics  *metrics.Collector
}

// NewGuard creates a guard for the given expected identity. The
// collector counts denials and may be nil.
func NewGuard(expected Expected, source CredentialSource, logger *log.Logger, collector *metrics.Collector) *Guard {
	return &Guard{expected: expected, source: source, logger: logger, metrics: collector}
}

// Verify runs all four checks against the identity.
// Order is fixed; the first mismatch decides the reported check.
func (g *Guard) Verify(id *PeerIdentity) Decision {
	if id == nil {
		return Decision{Failed: CheckCredentials}
	}

	switch {
	case id.Digest == "" || id.Digest != g.expected.Digest:
		return Decision{Failed: CheckSignature}
	case id.Identifier == "" || id.Identifier != g.expected.Identifier:
		return Decision{Failed: CheckIdentifier}
	case id.Authority == "" || id.Authority != g.expected.Authority:
		return Decision{Failed: CheckAuthority}
	case id.UID != g.expected.SessionUID:
		return Decision{Failed: CheckSessionUser}
	}

	return Decision{Allowed: true}
}

// Authorize gathers the peer's credentials and verifies them, logging
// the outcome. The log record carries the decision and, on denial, the
// failed check name; it never includes paths, digests, or user content.
func (g *Guard) Authorize(conn net.Conn) error {
	id, err := g.source.Identity(conn)
	if err != nil {
		// A gathering failure is a denial, not a retry.
		g.metrics.IncAuthDenial()
		g.logger.Warn("peer denied", map[string]any{
			"check": string(CheckCredentials),
		})
		return &DeniedError{Check: CheckCredentials}
	}

	decision := g.Verify(id)
	if !decision.Allowed {
		g.metrics.IncAuthDenial()
		g.logger.Warn("peer denied", map[string]any{
			"check": string(decision.Failed),
		})
		return &DeniedError{Check: decision.Failed}
	}

	g.logger.Info("peer allowed", map[string]any{
		"pid": id.PID,
	})
	return nil
}
