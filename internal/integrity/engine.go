// Package integrity performs every write that touches more than one entity.
//
// Children carry the authoritative forward references to their parents
// (user, wallet, category). The parents' owning sets are a derived index
// that only this package writes. Every operation checks its references
// once before its transaction starts, then reads them again under a row
// lock inside the transaction and applies all of its writes there, so
// callers never observe a partial update and never act on a stale read.
package integrity

import (
	"context"
	"errors"
	"fmt"

	apperrors "pocketbook/internal/errors"
	"pocketbook/internal/models"
	"pocketbook/internal/store"
)

// Engine enforces referential integrity between users, wallets, categories
// and budget elements.
type Engine struct {
	store store.Store
}

// NewEngine creates an Engine writing through s.
func NewEngine(s store.Store) *Engine {
	return &Engine{store: s}
}

// CascadeResult counts the records removed by DeleteUserCascade.
type CascadeResult struct {
	BudgetElements int64 `json:"budget_elements"`
	Wallets        int64 `json:"wallets"`
	Categories     int64 `json:"categories"`
	SetEntries     int64 `json:"set_entries"`
}

// Lookup resolves ref on behalf of owner. A record that is missing or that
// belongs to another user is reported as not found. An empty owner skips
// the ownership check.
func (e *Engine) Lookup(ctx context.Context, owner string, ref models.Ref) (models.Record, error) {
	return resolve(ctx, e.store, owner, ref)
}

// CreateChild persists child and appends it to the owning set of every
// parent it references. All parents must exist and belong to the child's
// owner; otherwise nothing is written.
func (e *Engine) CreateChild(ctx context.Context, child models.Child) error {
	owner := child.OwnerID()
	parents := child.Parents()

	for _, p := range parents {
		if _, err := resolve(ctx, e.store, owner, p); err != nil {
			return err
		}
	}

	return e.atomically(ctx, func(tx store.Tx) error {
		// Hold the parents so none of them is deleted before the links exist.
		for _, p := range parents {
			if _, err := lock(ctx, tx, owner, p); err != nil {
				return err
			}
		}
		if err := tx.Save(ctx, child); err != nil {
			return err
		}
		ref := models.RefOf(child)
		for _, p := range parents {
			if err := tx.AppendToSet(ctx, owner, p, ref); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteChild removes the wallet, category or budget element ref owned by
// owner and unlinks it from its parents. Wallets and categories that still
// hold budget elements are refused with ErrHasDependents.
func (e *Engine) DeleteChild(ctx context.Context, owner string, ref models.Ref) error {
	if ref.Kind == models.KindUser {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "users are removed with a cascade delete")
	}

	rec, err := resolve(ctx, e.store, owner, ref)
	if err != nil {
		return err
	}
	if parent, ok := rec.(models.Parent); ok {
		if err := checkNoDependents(ctx, e.store, parent); err != nil {
			return asAppError(err)
		}
	}

	return e.atomically(ctx, func(tx store.Tx) error {
		// The record may have been re-linked or linked to since the read
		// above; unlink it from the parents it references now.
		rec, err := lock(ctx, tx, owner, ref)
		if err != nil {
			return err
		}
		child, ok := rec.(models.Child)
		if !ok {
			return fmt.Errorf("%s is not a child record", ref.Kind)
		}
		parent, isParent := rec.(models.Parent)
		if isParent {
			if err := checkNoDependents(ctx, tx, parent); err != nil {
				return err
			}
		}
		if err := tx.Delete(ctx, ref.Kind, ref.ID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(ref.Kind)
			}
			return err
		}
		for _, p := range child.Parents() {
			if err := tx.RemoveFromSet(ctx, p, ref); err != nil {
				return err
			}
		}
		if isParent {
			return tx.DropSets(ctx, ref)
		}
		return nil
	})
}

// DeleteUserCascade removes a user together with every wallet, category,
// budget element and owning-set row that belongs to it.
func (e *Engine) DeleteUserCascade(ctx context.Context, userID string) (CascadeResult, error) {
	var res CascadeResult
	if _, err := resolve(ctx, e.store, "", models.Ref{Kind: models.KindUser, ID: userID}); err != nil {
		return res, err
	}

	err := e.atomically(ctx, func(tx store.Tx) error {
		if _, err := lock(ctx, tx, "", models.Ref{Kind: models.KindUser, ID: userID}); err != nil {
			return err
		}

		var n CascadeResult
		var err error
		byUser := store.ByUser(userID)

		if n.BudgetElements, err = tx.DeleteMany(ctx, models.KindBudgetElement, byUser); err != nil {
			return err
		}
		if n.Wallets, err = tx.DeleteMany(ctx, models.KindWallet, byUser); err != nil {
			return err
		}
		if n.Categories, err = tx.DeleteMany(ctx, models.KindCategory, byUser); err != nil {
			return err
		}
		if n.SetEntries, err = tx.DeleteSetsOwnedBy(ctx, userID); err != nil {
			return err
		}
		if err := tx.Delete(ctx, models.KindUser, userID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return apperrors.ErrUserNotFound
			}
			return err
		}
		res = n
		return nil
	})
	return res, err
}

// UpdateChild loads ref, lets apply modify it and saves the result. When
// apply changes a forward reference, the record is moved from the old
// parent's set to the new one in the same transaction. The owning user can
// never change. apply runs inside the transaction on a locked copy of the
// record and may run again if the transaction is retried.
func (e *Engine) UpdateChild(ctx context.Context, owner string, ref models.Ref, apply func(models.Record) error) (models.Record, error) {
	if _, err := resolve(ctx, e.store, owner, ref); err != nil {
		return nil, err
	}

	var (
		updated  models.Record
		applyErr error
	)
	err := e.atomically(ctx, func(tx store.Tx) error {
		rec, err := lock(ctx, tx, owner, ref)
		if err != nil {
			return err
		}
		child, ok := rec.(models.Child)
		if !ok {
			return fmt.Errorf("%s is not a child record", ref.Kind)
		}
		before := child.Parents()
		origOwner := rec.OwnerID()

		if applyErr = apply(rec); applyErr != nil {
			return applyErr
		}
		if rec.GetID() != ref.ID || rec.OwnerID() != origOwner {
			return apperrors.WithFields(apperrors.ErrValidationFailed, map[string]string{
				"user_id": "ownership cannot be changed",
			})
		}

		for i, to := range child.Parents() {
			if to == before[i] {
				continue
			}
			if _, err := lock(ctx, tx, origOwner, to); err != nil {
				return err
			}
			if err := tx.RemoveFromSet(ctx, before[i], ref); err != nil {
				return err
			}
			if err := tx.AppendToSet(ctx, origOwner, to, ref); err != nil {
				return err
			}
		}

		if err := tx.Save(ctx, rec); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return notFound(ref.Kind)
			}
			return err
		}
		updated = rec
		return nil
	})
	if applyErr != nil {
		return nil, applyErr
	}
	if err != nil {
		return nil, err
	}

	// Sets of the updated record are unchanged; reload them so the
	// returned value is complete.
	if p, ok := updated.(models.Parent); ok {
		if err := store.LoadSets(ctx, e.store, p); err != nil {
			return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}
	return updated, nil
}

// RebuildIndex discards every owning set of a user and recomputes them from
// the forward references of the user's records. It returns the number of
// set entries written.
func (e *Engine) RebuildIndex(ctx context.Context, userID string) (int, error) {
	if _, err := resolve(ctx, e.store, "", models.Ref{Kind: models.KindUser, ID: userID}); err != nil {
		return 0, err
	}

	var written int
	err := e.atomically(ctx, func(tx store.Tx) error {
		written = 0
		if _, err := lock(ctx, tx, "", models.Ref{Kind: models.KindUser, ID: userID}); err != nil {
			return err
		}
		if _, err := tx.DeleteSetsOwnedBy(ctx, userID); err != nil {
			return err
		}
		for _, kind := range []models.Kind{models.KindWallet, models.KindCategory, models.KindBudgetElement} {
			recs, err := tx.FindMany(ctx, kind, store.ByUser(userID))
			if err != nil {
				return err
			}
			for _, rec := range recs {
				child := rec.(models.Child)
				for _, p := range child.Parents() {
					if err := tx.AppendToSet(ctx, userID, p, models.RefOf(rec)); err != nil {
						return err
					}
					written++
				}
			}
		}
		return nil
	})
	return written, err
}

// atomically runs fn in a store transaction. Application errors raised by
// fn pass through unchanged; anything else is a failed transaction.
func (e *Engine) atomically(ctx context.Context, fn func(tx store.Tx) error) error {
	err := e.store.WithTx(ctx, fn)
	if err == nil {
		return nil
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrTransactionFailed, err)
}

// asAppError passes application errors through and reports anything else
// as an internal error.
func asAppError(err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperrors.Wrap(apperrors.ErrInternalServer, err)
}

func resolve(ctx context.Context, r store.Reader, owner string, ref models.Ref) (models.Record, error) {
	return resolveRecord(ctx, r.Find, owner, ref)
}

// lock is resolve inside tx with the row held until tx ends.
func lock(ctx context.Context, tx store.Tx, owner string, ref models.Ref) (models.Record, error) {
	return resolveRecord(ctx, tx.FindForUpdate, owner, ref)
}

func resolveRecord(ctx context.Context, find func(context.Context, models.Kind, string) (models.Record, error), owner string, ref models.Ref) (models.Record, error) {
	rec, err := find(ctx, ref.Kind, ref.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, notFound(ref.Kind)
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if owner != "" && rec.OwnerID() != owner {
		return nil, notFound(ref.Kind)
	}
	return rec, nil
}

func checkNoDependents(ctx context.Context, r store.Reader, p models.Parent) error {
	for _, kind := range p.ChildKinds() {
		ids, err := r.Members(ctx, models.RefOf(p), kind)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			return apperrors.WithMessage(apperrors.ErrHasDependents,
				fmt.Sprintf("%s has dependent budget elements", displayName(p.Kind())))
		}
	}
	return nil
}

func notFound(kind models.Kind) *apperrors.AppError {
	switch kind {
	case models.KindUser:
		return apperrors.ErrUserNotFound
	case models.KindWallet:
		return apperrors.ErrWalletNotFound
	case models.KindCategory:
		return apperrors.ErrCategoryNotFound
	case models.KindBudgetElement:
		return apperrors.ErrBudgetElementNotFound
	}
	return apperrors.ErrNotFound
}

func displayName(kind models.Kind) string {
	switch kind {
	case models.KindWallet:
		return "Wallet"
	case models.KindCategory:
		return "Category"
	}
	return string(kind)
}
