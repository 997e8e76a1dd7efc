// Package keyproof verifies that a bearer access token was counter-signed
// by the app and/or hardware auth factor at request time.
package keyproof

import (
	common "github.com/coldkeep/custody-api/pkg/domain"
	"github.com/coldkeep/custody-api/pkg/infra/crypto"
)

// AccountKeys is the minimal view of an account's current auth pubkeys a
// verifier needs. Compressed secp256k1 public keys, as stored on the
// account's active auth-keys entry.
type AccountKeys struct {
	AppPubKey      []byte
	HwPubKey       []byte
	RecoveryPubKey []byte
}

// Proof is the result of verifying a token against zero or more candidate
// signatures. A signature that fails to verify yields false, never an
// error: callers decide whether a missing/failed proof is fatal for their
// operation.
type Proof struct {
	AppSigned bool
	HwSigned  bool
}

// RequireBoth reports whether both the app and hardware factors signed.
func (p Proof) RequireBoth() bool {
	return p.AppSigned && p.HwSigned
}

type Verifier struct{}

func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify checks appSig/hwSig (DER-encoded ECDSA signatures over the raw
// access token string, checked by crypto.VerifyDER; compact-encoded
// signatures are not accepted) against the account's current app/hw pubkeys.
// Either signature may be nil, in which case its corresponding flag is
// false.
func (v *Verifier) Verify(token string, appSig, hwSig []byte, account AccountKeys) (Proof, error) {
	var proof Proof

	if len(appSig) > 0 && len(account.AppPubKey) > 0 {
		ok, err := crypto.VerifyDER(account.AppPubKey, []byte(token), appSig)
		if err != nil {
			return Proof{}, err
		}
		proof.AppSigned = ok
	}

	if len(hwSig) > 0 && len(account.HwPubKey) > 0 {
		ok, err := crypto.VerifyDER(account.HwPubKey, []byte(token), hwSig)
		if err != nil {
			return Proof{}, err
		}
		proof.HwSigned = ok
	}

	return proof, nil
}

// RequireKeyProof returns common.ErrForbidden-shaped error (KeyProofRequired)
// when the proof does not satisfy both factors, per spec.md §4.12.
func RequireKeyProof(proof Proof) error {
	if !proof.RequireBoth() {
		return common.NewErrForbidden("KeyProofRequired")
	}
	return nil
}
