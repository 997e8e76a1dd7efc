// Package hsm is the remote co-signing/grant client (spec.md's "HSM client"
// remote calls, SPEC_FULL.md's C9/C10/C11 dependency): the server's share of
// a keyset, and the key that signs out-of-band transaction-verification
// grants, are held in an HSM behind a small gRPC surface rather than in this
// process. The wire contract is opaque bytes in, opaque bytes out (a PSBT or
// a digest) carried in the well-known wrapperspb.BytesValue message, the
// same way a thin internal sidecar client is written when the HSM vendor's
// own proto package isn't vendored into the caller's module.
package hsm

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	common "github.com/coldkeep/custody-api/pkg/domain"
	inheritance_out "github.com/coldkeep/custody-api/pkg/domain/inheritance/ports/out"
)

const (
	methodCoSignPSBT = "/custody.hsm.v1.Signer/CoSignPSBT"
	methodSignDigest = "/custody.hsm.v1.Signer/SignDigest"
)

var _ inheritance_out.HSMSigner = (*Client)(nil)

// Client dials the HSM endpoint once at startup and reuses the connection
// for every co-sign/grant call; grpc.ClientConn is itself safe for
// concurrent use.
type Client struct {
	conn *grpc.ClientConn
}

// NewClient dials cfg.Endpoint. Insecure is dev-only, for a local HSM
// simulator that doesn't terminate TLS.
func NewClient(cfg common.HSMConfig) (*Client, error) {
	var creds credentials.TransportCredentials
	if cfg.Insecure {
		creds = insecure.NewCredentials()
	} else {
		creds = credentials.NewTLS(nil)
	}

	conn, err := grpc.DialContext(context.Background(), cfg.Endpoint, grpc.WithTransportCredentials(creds))
	if err != nil {
		return nil, fmt.Errorf("hsm: dial %s: %w", cfg.Endpoint, err)
	}

	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// CoSignPSBT sends an unsigned (or partially signed) PSBT to the HSM and
// returns it with the server's input signatures added. keysetID selects
// which derived key the HSM signs with; it travels out of band of the PSBT
// bytes themselves since the PSBT carries no notion of "which of our
// keysets" on its own.
func (c *Client) CoSignPSBT(ctx context.Context, keysetID string, psbt []byte) ([]byte, error) {
	ctx = withKeysetID(ctx, keysetID)

	req := wrapperspb.Bytes(psbt)
	resp := &wrapperspb.BytesValue{}

	if err := c.conn.Invoke(ctx, methodCoSignPSBT, req, resp); err != nil {
		return nil, fmt.Errorf("hsm: co-sign psbt: %w", err)
	}

	return resp.GetValue(), nil
}

// SignDigest signs an arbitrary digest (a transaction-verification grant
// challenge, spec.md §4.9) with the HSM's grant-signing key.
func (c *Client) SignDigest(ctx context.Context, keysetID string, digest []byte) ([]byte, error) {
	ctx = withKeysetID(ctx, keysetID)

	req := wrapperspb.Bytes(digest)
	resp := &wrapperspb.BytesValue{}

	if err := c.conn.Invoke(ctx, methodSignDigest, req, resp); err != nil {
		return nil, fmt.Errorf("hsm: sign digest: %w", err)
	}

	return resp.GetValue(), nil
}
