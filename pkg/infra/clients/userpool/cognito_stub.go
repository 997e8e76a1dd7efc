package userpool

import (
	"context"
	"fmt"

	"github.com/coldkeep/custody-api/pkg/domain/userpool"
)

// CognitoGateway documents the shape a real AWS Cognito-backed Gateway
// would take: one AdminX call per operation, a user pool id and region
// supplied at construction. Wiring the actual AWS SDK is out of scope
// (spec.md §1); every method returns an error so a misconfigured deployment
// fails loudly instead of silently no-opping.
type CognitoGateway struct {
	UserPoolID string
	Region     string
}

func NewCognitoGateway(userPoolID, region string) *CognitoGateway {
	return &CognitoGateway{UserPoolID: userPoolID, Region: region}
}

func (g *CognitoGateway) errUnimplemented(op string) error {
	return fmt.Errorf("userpool: cognito gateway %s not wired (out of scope, pool=%s)", op, g.UserPoolID)
}

func (g *CognitoGateway) CreateOrUpdateUser(ctx context.Context, username string, pubkey []byte) error {
	return g.errUnimplemented("AdminCreateUser/AdminUpdateUserAttributes")
}

func (g *CognitoGateway) IsExistingUser(ctx context.Context, username string) (bool, error) {
	return false, g.errUnimplemented("AdminGetUser")
}

func (g *CognitoGateway) InitiateAuth(ctx context.Context, username string) (userpool.Challenge, error) {
	return userpool.Challenge{}, g.errUnimplemented("AdminInitiateAuth")
}

func (g *CognitoGateway) RespondToAuth(ctx context.Context, username, session string, answer []byte) (userpool.Tokens, error) {
	return userpool.Tokens{}, g.errUnimplemented("AdminRespondToAuthChallenge")
}

func (g *CognitoGateway) Refresh(ctx context.Context, refreshToken string) (userpool.Tokens, error) {
	return userpool.Tokens{}, g.errUnimplemented("AdminInitiateAuth(REFRESH_TOKEN_AUTH)")
}

func (g *CognitoGateway) SignOut(ctx context.Context, username string) error {
	return g.errUnimplemented("AdminUserGlobalSignOut")
}

func (g *CognitoGateway) IsAccessTokenRevoked(ctx context.Context, accessToken string) (bool, error) {
	return true, g.errUnimplemented("GetUser")
}

var _ userpool.Gateway = (*CognitoGateway)(nil)
