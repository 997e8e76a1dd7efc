// Package userpool ships reference implementations of
// pkg/domain/userpool.Gateway: an in-memory fake exercised by tests and a
// Cognito-shaped stub documenting the real vendor call shape.
package userpool

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/coldkeep/custody-api/pkg/domain/userpool"
	"github.com/coldkeep/custody-api/pkg/infra/crypto"
)

type identity struct {
	pubkey       []byte
	accessTokens map[string]bool // token -> revoked
	sessions     map[string][]byte
	refreshToken string
}

// InMemoryGateway is the reference Gateway used by tests and local runs; it
// holds no external dependency and is safe for concurrent use.
type InMemoryGateway struct {
	mu    sync.Mutex
	users map[string]*identity
}

func NewInMemoryGateway() *InMemoryGateway {
	return &InMemoryGateway{users: make(map[string]*identity)}
}

func (g *InMemoryGateway) CreateOrUpdateUser(ctx context.Context, username string, pubkey []byte) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[username]
	if !ok {
		g.users[username] = &identity{
			pubkey:       pubkey,
			accessTokens: make(map[string]bool),
			sessions:     make(map[string][]byte),
		}
		return nil
	}

	if !bytesEqual(u.pubkey, pubkey) {
		u.pubkey = pubkey
		for token := range u.accessTokens {
			u.accessTokens[token] = true
		}
	}
	return nil
}

func (g *InMemoryGateway) IsExistingUser(ctx context.Context, username string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.users[username]
	return ok, nil
}

func (g *InMemoryGateway) InitiateAuth(ctx context.Context, username string) (userpool.Challenge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[username]
	if !ok {
		return userpool.Challenge{}, fmt.Errorf("userpool: unknown username %q", username)
	}

	nonce := make([]byte, 64)
	if _, err := rand.Read(nonce); err != nil {
		return userpool.Challenge{}, err
	}
	session := hex.EncodeToString(nonce[:8])
	u.sessions[session] = nonce

	return userpool.Challenge{Nonce: nonce, Session: session}, nil
}

func (g *InMemoryGateway) RespondToAuth(ctx context.Context, username, session string, answer []byte) (userpool.Tokens, error) {
	g.mu.Lock()
	u, ok := g.users[username]
	if !ok {
		g.mu.Unlock()
		return userpool.Tokens{}, fmt.Errorf("userpool: unknown username %q", username)
	}
	nonce, ok := u.sessions[session]
	if !ok {
		g.mu.Unlock()
		return userpool.Tokens{}, fmt.Errorf("userpool: unknown session")
	}
	delete(u.sessions, session)
	pubkey := u.pubkey
	g.mu.Unlock()

	digest := sha256.Sum256(nonce)
	ok, err := crypto.VerifyDER(pubkey, digest[:], answer)
	if err != nil {
		return userpool.Tokens{}, err
	}
	if !ok {
		return userpool.Tokens{}, fmt.Errorf("userpool: challenge signature does not verify")
	}

	accessToken := hex.EncodeToString(randomBytes(32))
	refreshToken := hex.EncodeToString(randomBytes(32))

	g.mu.Lock()
	u.accessTokens[accessToken] = false
	u.refreshToken = refreshToken
	g.mu.Unlock()

	return userpool.Tokens{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: time.Hour}, nil
}

func (g *InMemoryGateway) Refresh(ctx context.Context, refreshToken string) (userpool.Tokens, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range g.users {
		if u.refreshToken == refreshToken {
			accessToken := hex.EncodeToString(randomBytes(32))
			u.accessTokens[accessToken] = false
			return userpool.Tokens{AccessToken: accessToken, RefreshToken: refreshToken, ExpiresIn: time.Hour}, nil
		}
	}
	return userpool.Tokens{}, fmt.Errorf("userpool: unknown refresh token")
}

func (g *InMemoryGateway) SignOut(ctx context.Context, username string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	u, ok := g.users[username]
	if !ok {
		return fmt.Errorf("userpool: unknown username %q", username)
	}
	for token := range u.accessTokens {
		u.accessTokens[token] = true
	}
	return nil
}

func (g *InMemoryGateway) IsAccessTokenRevoked(ctx context.Context, accessToken string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for _, u := range g.users {
		if revoked, ok := u.accessTokens[accessToken]; ok {
			return revoked, nil
		}
	}
	return true, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func randomBytes(n int) []byte {
	b := make([]byte, n)
	_, _ = rand.Read(b)
	return b
}
