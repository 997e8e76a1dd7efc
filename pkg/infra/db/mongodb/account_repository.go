package db

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
)

var _ account_out.AccountRepository = (*AccountRepository)(nil)

// roleField maps a pubkey role name to the bson field it lives under inside
// an AuthKeys history entry.
var roleField = map[string]string{
	"app":      "app_pubkey",
	"hw":       "hw_pubkey",
	"recovery": "recovery_pubkey",
}

// AccountRepository is the Mongo-backed account_out.AccountRepository,
// wrapping VersionedRepository for CAS writes and adding the pubkey-reuse
// lookups spec.md §7 needs. Grounded on the teacher's per-entity repository
// wrappers around its generic Mongo repository.
type AccountRepository struct {
	*VersionedRepository[account_entities.Account]
}

func NewAccountRepository(db *mongo.Database) *AccountRepository {
	return &AccountRepository{
		VersionedRepository: NewVersionedRepository[account_entities.Account](db, "accounts"),
	}
}

// FindByActiveAuthPubkey finds the account whose currently active auth keys
// entry carries pubkey under the given role. AuthKeysHistory is stored as
// an array (Mongo can't index a map keyed by UUID), so the $elemMatch below
// only narrows to "some historical entry has this pubkey"; the loop after
// confirms it's the active entry, since a pubkey can be carried forward
// unchanged across a rotation (e.g. the recovery key survives a Lite-to-Full
// upgrade).
func (r *AccountRepository) FindByActiveAuthPubkey(ctx context.Context, role string, pubkey []byte) (account_entities.Account, bool, error) {
	field, ok := roleField[role]
	if !ok {
		return account_entities.Account{}, false, fmt.Errorf("account repository: unknown auth role %q", role)
	}

	filter := bson.M{
		"auth_keys_history": bson.M{
			"$elemMatch": bson.M{field: pubkey},
		},
	}

	candidates, err := r.Find(ctx, filter)
	if err != nil {
		return account_entities.Account{}, false, err
	}

	for _, acct := range candidates {
		active, ok := acct.ActiveAuthKeys()
		if !ok {
			continue
		}
		if activePubkeyForRole(active, role) != nil && bytesEqual(activePubkeyForRole(active, role), pubkey) {
			return acct, true, nil
		}
	}

	return account_entities.Account{}, false, nil
}

func activePubkeyForRole(k account_entities.AuthKeys, role string) []byte {
	switch role {
	case "app":
		return k.AppPubkey
	case "hw":
		return k.HwPubkey
	case "recovery":
		return k.RecoveryPubkey
	default:
		return nil
	}
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
