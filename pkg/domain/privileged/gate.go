// Package privileged implements the admission-policy framework spec.md
// §4.12 describes: a mutation of type M gated behind one of three
// strategies before it is allowed to apply. KeyProof is synchronous and
// needs no persistence; DelayNotify and OutOfBand persist an Instance[M]
// via Repository[M] (pkg/infra/db/mongodb.VersionedRepository[Instance[M]]
// at wiring time) and apply the mutation only once their condition is met.
package privileged

import (
	"context"
	"time"

	"github.com/google/uuid"

	common "github.com/coldkeep/custody-api/pkg/domain"
	privileged_entities "github.com/coldkeep/custody-api/pkg/domain/privileged/entities"
)

// Repository persists Instance[M] rows under compare-and-swap. Satisfied by
// *mongodb.VersionedRepository[privileged_entities.Instance[M]].
type Repository[M any] interface {
	Create(ctx context.Context, i privileged_entities.Instance[M]) error
	Update(ctx context.Context, i privileged_entities.Instance[M]) error
	GetByID(ctx context.Context, id uuid.UUID) (privileged_entities.Instance[M], error)
}

// KeyProof gates mutation behind synchronous app+hw key-proof verification:
// apply runs immediately, exactly once, iff both proofs are present.
func KeyProof[M any](appSigned, hwSigned bool, mutation M, apply func(M) error) error {
	if !appSigned || !hwSigned {
		return common.NewErrForbidden("KeyProofRequired")
	}
	return apply(mutation)
}

// BeginDelayNotify persists a Pending instance that may only continue once
// delay has elapsed, mirroring pkg/domain/recovery's Pending-then-complete
// shape but generic over the mutation it eventually applies.
func BeginDelayNotify[M any](ctx context.Context, repo Repository[M], accountID uuid.UUID, mutation M, delay time.Duration, now time.Time) (privileged_entities.Instance[M], error) {
	inst := privileged_entities.Instance[M]{
		ID:        uuid.New(),
		AccountID: accountID,
		Mutation:  mutation,
		Status:    privileged_entities.StatusPending,
		CompleteAt: now.Add(delay),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.Create(ctx, inst); err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	return inst, nil
}

// ContinueDelayNotify applies the pending mutation once its delay has
// elapsed. apply is only invoked after the instance is confirmed Pending
// and past CompleteAt.
func ContinueDelayNotify[M any](ctx context.Context, repo Repository[M], instanceID uuid.UUID, now time.Time, apply func(M) error) (privileged_entities.Instance[M], error) {
	inst, err := repo.GetByID(ctx, instanceID)
	if err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	if inst.Status != privileged_entities.StatusPending {
		return privileged_entities.Instance[M]{}, common.NewErrBadRequest("InstanceNotPending")
	}
	if !inst.DelayElapsed(now) {
		return privileged_entities.Instance[M]{}, common.NewErrBadRequest("DelayNotElapsed")
	}

	if err := apply(inst.Mutation); err != nil {
		return privileged_entities.Instance[M]{}, err
	}

	completedAt := now
	inst.Status = privileged_entities.StatusComplete
	inst.CompletedAt = &completedAt
	inst.UpdatedAt = now
	if err := repo.Update(ctx, inst); err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	return inst, nil
}

// CancelPending cancels a still-Pending instance, for either the
// DelayNotify or OutOfBand variant (the user repudiating a reset they
// didn't request, per spec.md §4.12's cancel-token wording).
func CancelPending[M any](ctx context.Context, repo Repository[M], instanceID uuid.UUID, now time.Time) error {
	inst, err := repo.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst.Status != privileged_entities.StatusPending {
		return common.NewErrBadRequest("InstanceNotPending")
	}

	canceledAt := now
	inst.Status = privileged_entities.StatusCanceled
	inst.CanceledAt = &canceledAt
	inst.UpdatedAt = now
	return repo.Update(ctx, inst)
}

// BeginOutOfBand persists a Pending instance and returns the confirmation
// code and cancel token for the caller to deliver over the account's
// touchpoint (the code) and on the confirmation link (the cancel token).
func BeginOutOfBand[M any](ctx context.Context, repo Repository[M], accountID uuid.UUID, mutation M, now time.Time) (privileged_entities.Instance[M], error) {
	code, err := privileged_entities.GenerateCode()
	if err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	cancelToken, err := privileged_entities.GenerateCode()
	if err != nil {
		return privileged_entities.Instance[M]{}, err
	}

	inst := privileged_entities.Instance[M]{
		ID:               uuid.New(),
		AccountID:        accountID,
		Mutation:         mutation,
		Status:           privileged_entities.StatusPending,
		ConfirmationCode: code,
		CancelToken:      cancelToken,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := repo.Create(ctx, inst); err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	return inst, nil
}

// ConfirmOutOfBand applies the pending mutation once the supplied code
// matches the instance's confirmation code.
func ConfirmOutOfBand[M any](ctx context.Context, repo Repository[M], instanceID uuid.UUID, code string, now time.Time, apply func(M) error) (privileged_entities.Instance[M], error) {
	inst, err := repo.GetByID(ctx, instanceID)
	if err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	if inst.Status != privileged_entities.StatusPending {
		return privileged_entities.Instance[M]{}, common.NewErrBadRequest("InstanceNotPending")
	}
	if code == "" || inst.ConfirmationCode != code {
		return privileged_entities.Instance[M]{}, common.NewErrBadRequest("InvalidConfirmationCode")
	}

	if err := apply(inst.Mutation); err != nil {
		return privileged_entities.Instance[M]{}, err
	}

	completedAt := now
	inst.Status = privileged_entities.StatusComplete
	inst.CompletedAt = &completedAt
	inst.UpdatedAt = now
	if err := repo.Update(ctx, inst); err != nil {
		return privileged_entities.Instance[M]{}, err
	}
	return inst, nil
}

// CancelOutOfBand cancels a Pending instance via its cancel token, the
// repudiation path spec.md §4.12 names explicitly.
func CancelOutOfBand[M any](ctx context.Context, repo Repository[M], instanceID uuid.UUID, cancelToken string, now time.Time) error {
	inst, err := repo.GetByID(ctx, instanceID)
	if err != nil {
		return err
	}
	if inst.Status != privileged_entities.StatusPending {
		return common.NewErrBadRequest("InstanceNotPending")
	}
	if cancelToken == "" || inst.CancelToken != cancelToken {
		return common.NewErrBadRequest("InvalidCancelToken")
	}

	canceledAt := now
	inst.Status = privileged_entities.StatusCanceled
	inst.CanceledAt = &canceledAt
	inst.UpdatedAt = now
	return repo.Update(ctx, inst)
}
