//go:build linux

package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"syscall"

	"github.com/justapithecus/freetracer/iox"
)

// PeerCredentialSource gathers peer identity from the kernel
// (SO_PEERCRED) and the process filesystem. The digest is computed over
// /proc/<pid>/exe, which refers to the running binary image even if the
// file on disk has since been replaced.
type PeerCredentialSource struct{}

// NewPeerCredentialSource creates the production credential source.
func NewPeerCredentialSource() *PeerCredentialSource {
	return &PeerCredentialSource{}
}

// Identity implements CredentialSource.
func (s *PeerCredentialSource) Identity(conn net.Conn) (*PeerIdentity, error) {
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		return nil, fmt.Errorf("peer credentials require a unix socket, got %T", conn)
	}

	cred, err := peerCred(uc)
	if err != nil {
		return nil, fmt.Errorf("cannot read peer credentials: %w", err)
	}

	exe, err := os.Readlink(fmt.Sprintf("/proc/%d/exe", cred.Pid))
	if err != nil {
		return nil, fmt.Errorf("cannot resolve peer executable: %w", err)
	}

	digest, err := executableDigest(cred.Pid)
	if err != nil {
		return nil, err
	}

	return &PeerIdentity{
		UID:        cred.Uid,
		PID:        cred.Pid,
		Digest:     digest,
		Identifier: filepath.Base(exe),
		Authority:  filepath.Dir(exe),
	}, nil
}

// peerCred fetches the socket peer credentials of conn.
func peerCred(conn *net.UnixConn) (*syscall.Ucred, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		return nil, err
	}

	var ucred *syscall.Ucred
	cerr := raw.Control(func(fd uintptr) {
		ucred, err = syscall.GetsockoptUcred(int(fd), syscall.SOL_SOCKET, syscall.SO_PEERCRED)
	})
	if err := errors.Join(err, cerr); err != nil {
		return nil, err
	}
	return ucred, nil
}

// executableDigest hashes the peer's running binary image.
func executableDigest(pid int32) (string, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/exe", pid))
	if err != nil {
		return "", fmt.Errorf("cannot open peer executable: %w", err)
	}
	defer iox.DiscardClose(f)

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("cannot hash peer executable: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
