package notification_clients

import (
	"context"

	"github.com/google/uuid"

	account_entities "github.com/coldkeep/custody-api/pkg/domain/account/entities"
	account_out "github.com/coldkeep/custody-api/pkg/domain/account/ports/out"
	notification_out "github.com/coldkeep/custody-api/pkg/domain/notification/ports/out"
)

var _ notification_out.AccountLookup = (*AccountLookupAdapter)(nil)

// AccountLookupAdapter narrows account_out.AccountRepository down to the
// single read the notification domain needs, so that package doesn't
// import the whole account port surface.
type AccountLookupAdapter struct {
	repo account_out.AccountRepository
}

func NewAccountLookupAdapter(repo account_out.AccountRepository) *AccountLookupAdapter {
	return &AccountLookupAdapter{repo: repo}
}

func (a *AccountLookupAdapter) GetAccount(ctx context.Context, accountID uuid.UUID) (account_entities.Account, error) {
	return a.repo.GetByID(ctx, accountID)
}
