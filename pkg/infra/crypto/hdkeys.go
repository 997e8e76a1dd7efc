package crypto

import (
	"crypto/rand"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

// ServerKeyProvider derives the server-side extended public key for a
// newly created spending keyset, one HD chain per network, keyed off a
// single master seed. Grounded on the hdkeychain-based derivation used by
// the arcSignv2 reference adapter's HD key service.
type ServerKeyProvider struct {
	masters map[account_entities.Network]*hdkeychain.ExtendedKey
}

// NewServerKeyProvider derives one master extended key per network from
// seed (32+ bytes, e.g. loaded from an HSM-backed secret in production).
func NewServerKeyProvider(seed []byte) (*ServerKeyProvider, error) {
	p := &ServerKeyProvider{masters: make(map[account_entities.Network]*hdkeychain.ExtendedKey)}

	params := map[account_entities.Network]*chaincfg.Params{
		account_entities.NetworkBitcoin: &chaincfg.MainNetParams,
		account_entities.NetworkTestnet: &chaincfg.TestNet3Params,
		account_entities.NetworkSignet:  &chaincfg.SigNetParams,
		account_entities.NetworkRegtest: &chaincfg.RegressionNetParams,
	}

	for network, netParams := range params {
		master, err := hdkeychain.NewMaster(seed, netParams)
		if err != nil {
			return nil, fmt.Errorf("derive master key for %s: %w", network, err)
		}
		p.masters[network] = master
	}

	return p, nil
}

// NewRandomServerKeyProvider is a convenience constructor for tests and
// local runs: a fresh random seed each process start.
func NewRandomServerKeyProvider() (*ServerKeyProvider, error) {
	seed := make([]byte, hdkeychain.RecommendedSeedLen)
	if _, err := rand.Read(seed); err != nil {
		return nil, err
	}
	return NewServerKeyProvider(seed)
}

// DeriveServerDpub hardens one child index per call so every keyset gets a
// distinct extended pubkey, then returns its neutered (public-only) base58
// string.
func (p *ServerKeyProvider) DeriveServerDpub(network account_entities.Network) (string, error) {
	master, ok := p.masters[network]
	if !ok {
		return "", fmt.Errorf("hdkeys: no master key for network %s", network)
	}

	idx := make([]byte, 4)
	if _, err := rand.Read(idx); err != nil {
		return "", err
	}
	child := uint32(idx[0])<<24 | uint32(idx[1])<<16 | uint32(idx[2])<<8 | uint32(idx[3])
	child &^= hdkeychain.HardenedKeyStart // keep in the public-derivable range

	derived, err := master.Derive(child)
	if err != nil {
		return "", err
	}

	neutered, err := derived.Neuter()
	if err != nil {
		return "", err
	}

	return neutered.String(), nil
}
