package account_out

import (
	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
)

// ServerKeyProvider derives the server's side of the 2-of-3 descriptor for
// a new spending keyset. The HSM owns the actual signing key; this port
// only returns the public extended key for a given network.
type ServerKeyProvider interface {
	DeriveServerDpub(network account_entities.Network) (string, error)
}
