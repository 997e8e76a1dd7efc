// Package userpool abstracts the three per-account identities (app,
// hardware, recovery) behind the seven operations the rest of the control
// plane relies on. The reference implementation is a cloud identity
// provider; only this interface's semantics are depended on elsewhere.
package userpool

import (
	"context"
	"time"
)

// Challenge is returned by InitiateAuth: a nonce bound to a session that
// the caller must sign with the identity's stored pubkey.
type Challenge struct {
	Nonce   []byte
	Session string
}

// Tokens is returned on a successful RespondToAuth or Refresh.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Gateway is the abstract user-pool contract (spec.md §4.2). Usernames are
// always one of "<account_id>-app", "<account_id>-hardware",
// "<account_id>-recovery" on write; the legacy collapsed "<account_id>-wallet"
// shape is accepted on read only (see pkg/domain/userpool/legacy.go).
type Gateway interface {
	// CreateOrUpdateUser upserts an identity. If the pubkey differs from
	// what is stored, old access tokens for that username are invalidated
	// via SignOut. Idempotent on (username, pubkey).
	CreateOrUpdateUser(ctx context.Context, username string, pubkey []byte) error

	// IsExistingUser reports whether the identity exists.
	IsExistingUser(ctx context.Context, username string) (bool, error)

	// InitiateAuth begins challenge-response login for username.
	InitiateAuth(ctx context.Context, username string) (Challenge, error)

	// RespondToAuth verifies answer, a DER-encoded ECDSA signature, against
	// the stored pubkey for username. The in-memory gateway passes
	// sha256(challenge.Nonce) to crypto.VerifyDER, which hashes it again, so
	// the signed hash is sha256(sha256(nonce)); compact-encoded signatures
	// are not accepted.
	RespondToAuth(ctx context.Context, username, session string, answer []byte) (Tokens, error)

	// Refresh exchanges a refresh token for a fresh access token. The
	// refresh token itself may or may not rotate.
	Refresh(ctx context.Context, refreshToken string) (Tokens, error)

	// SignOut revokes every outstanding access token for username.
	SignOut(ctx context.Context, username string) error

	// IsAccessTokenRevoked is a side-channel check used on privileged
	// paths that must not honor a token minted before a rotation.
	IsAccessTokenRevoked(ctx context.Context, accessToken string) (bool, error)
}

// Usernames derives the three per-account usernames from an account id.
func Usernames(accountID string) (app, hardware, recovery string) {
	return accountID + "-app", accountID + "-hardware", accountID + "-recovery"
}

// LegacyUsername is the deprecated collapsed app+hw identity. Accepted on
// read (see ResolveUsername), never written.
func LegacyUsername(accountID string) string {
	return accountID + "-wallet"
}
