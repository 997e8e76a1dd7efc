package db

import (
	"go.mongodb.org/mongo-driver/mongo"

	txverify_entities "github.com/coldkeep/custody-api/pkg/domain/txverify/entities"
	txverify_out "github.com/coldkeep/custody-api/pkg/domain/txverify/ports/out"
)

var _ txverify_out.Repository = (*TxVerifyRepository)(nil)

// TxVerifyRepository is the Mongo-backed txverify_out.Repository, a thin
// CAS wrapper with no extra lookups beyond GetByID: the (account_id,
// status) index (spec.md §6) backs a Mongo query index, not an extra Go
// method, since every caller already has the verification id in hand.
type TxVerifyRepository struct {
	*VersionedRepository[txverify_entities.Verification]
}

func NewTxVerifyRepository(db *mongo.Database) *TxVerifyRepository {
	return &TxVerifyRepository{
		VersionedRepository: NewVersionedRepository[txverify_entities.Verification](db, "tx_verifications"),
	}
}
