package userpool_test

import (
	"context"
	"crypto/sha256"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/stretchr/testify/require"

	"github.com/coldkeep/custody-api/pkg/infra/crypto"
	userpoolclient "github.com/coldkeep/custody-api/pkg/infra/clients/userpool"
)

func TestInMemoryGateway_ChallengeResponse(t *testing.T) {
	ctx := context.Background()
	g := userpoolclient.NewInMemoryGateway()

	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	pub := priv.PubKey().SerializeCompressed()

	username := "acct-1-app"
	require.NoError(t, g.CreateOrUpdateUser(ctx, username, pub))

	exists, err := g.IsExistingUser(ctx, username)
	require.NoError(t, err)
	require.True(t, exists)

	challenge, err := g.InitiateAuth(ctx, username)
	require.NoError(t, err)
	require.Len(t, challenge.Nonce, 64)

	digest := sha256.Sum256(challenge.Nonce)
	sig, err := crypto.SignDER(priv.Serialize(), digest[:])
	require.NoError(t, err)

	tokens, err := g.RespondToAuth(ctx, username, challenge.Session, sig)
	require.NoError(t, err)
	require.NotEmpty(t, tokens.AccessToken)

	revoked, err := g.IsAccessTokenRevoked(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.False(t, revoked)

	require.NoError(t, g.SignOut(ctx, username))

	revoked, err = g.IsAccessTokenRevoked(ctx, tokens.AccessToken)
	require.NoError(t, err)
	require.True(t, revoked)
}
