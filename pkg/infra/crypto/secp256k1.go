// Package crypto wraps secp256k1 ECDSA sign/verify for compact access-token
// proofs, grounded on the DER-sign/verify helpers used for Bitcoin payload
// signing in the arcsign reference adapter.
package crypto

import (
	"crypto/sha256"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
)

// VerifyDER verifies a DER-encoded ECDSA signature over sha256(message)
// against a compressed secp256k1 public key. It never returns an error for
// a signature that simply fails to verify — callers treat "false" as a
// normal outcome, not a fault.
func VerifyDER(pubKeyBytes []byte, message []byte, sigDER []byte) (bool, error) {
	pubKey, err := btcec.ParsePubKey(pubKeyBytes)
	if err != nil {
		return false, fmt.Errorf("parse pubkey: %w", err)
	}

	sig, err := ecdsa.ParseDERSignature(sigDER)
	if err != nil {
		return false, nil
	}

	hash := sha256.Sum256(message)
	return sig.Verify(hash[:], pubKey), nil
}

// SignDER signs sha256(message) with the given private key and returns a
// DER-encoded signature.
func SignDER(privKeyBytes []byte, message []byte) ([]byte, error) {
	privKey, _ := btcec.PrivKeyFromBytes(privKeyBytes)
	hash := sha256.Sum256(message)
	sig := ecdsa.Sign(privKey, hash[:])
	return sig.Serialize(), nil
}
