// Package store persists the four entity kinds and the owning-set index.
//
// Records are read and written through kind-tagged calls so the integrity
// engine can treat users, wallets, categories and budget elements uniformly.
// Owning sets live in their own table: appending is an atomic insert that
// ignores duplicates, removing is a delete, so concurrent writers never lose
// each other's updates.
package store

import (
	"context"
	"errors"

	"pocketbook/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Filter narrows FindMany, Count and DeleteMany.
type Filter struct {
	// Where maps a column to the value it must equal. A []string value
	// matches any of its elements.
	Where   map[string]any
	OrderBy string
	Limit   int
	Offset  int
}

// Cond is an extra condition an UpdateFields call must satisfy.
type Cond struct {
	Query string
	Args  []any
}

// Where builds a Cond from a SQL fragment and its arguments.
func Where(query string, args ...any) Cond {
	return Cond{Query: query, Args: args}
}

// Expr is a SQL expression used as an UpdateFields value, such as
// "failed_login_attempts + 1".
type Expr struct {
	SQL  string
	Args []any
}

// Raw builds an Expr.
func Raw(sql string, args ...any) Expr {
	return Expr{SQL: sql, Args: args}
}

// ByUser returns a filter matching every record owned by userID.
func ByUser(userID string) Filter {
	return Filter{Where: map[string]any{"user_id": userID}}
}

// Reader is the read side of the store.
type Reader interface {
	Find(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	FindMany(ctx context.Context, kind models.Kind, f Filter) ([]models.Record, error)
	Count(ctx context.Context, kind models.Kind, f Filter) (int64, error)

	// Members returns the child ids in parent's set of the given kind,
	// in append order.
	Members(ctx context.Context, parent models.Ref, child models.Kind) ([]string, error)
	// MembersOf is the batched form of Members, keyed by parent id.
	MembersOf(ctx context.Context, parentKind models.Kind, parentIDs []string, child models.Kind) (map[string][]string, error)
}

// Writer is the write side of the store.
type Writer interface {
	// FindForUpdate is Find that also locks the row until the surrounding
	// transaction ends.
	FindForUpdate(ctx context.Context, kind models.Kind, id string) (models.Record, error)
	// Save inserts rec when it has no id yet. Otherwise it overwrites every
	// column of the existing row and returns ErrNotFound when the row is
	// gone; a record with an id is never inserted.
	Save(ctx context.Context, rec models.Record) error
	// UpdateFields writes only the given columns of the row kind/id. Every
	// cond must also hold, otherwise nothing is written and ErrNotFound is
	// returned.
	UpdateFields(ctx context.Context, kind models.Kind, id string, fields map[string]any, conds ...Cond) error
	Delete(ctx context.Context, kind models.Kind, id string) error
	DeleteMany(ctx context.Context, kind models.Kind, f Filter) (int64, error)

	// AppendToSet adds child to parent's set. Appending a member that is
	// already present is a no-op.
	AppendToSet(ctx context.Context, owner string, parent, child models.Ref) error
	RemoveFromSet(ctx context.Context, parent, child models.Ref) error
	// DropSets removes every set held by parent.
	DropSets(ctx context.Context, parent models.Ref) error
	// DeleteSetsOwnedBy removes every set row belonging to a user's records.
	DeleteSetsOwnedBy(ctx context.Context, owner string) (int64, error)
}

// Tx is a unit of work. Every call made through a Tx belongs to the same
// database transaction.
type Tx interface {
	Reader
	Writer
}

// Txn is an explicitly managed transaction.
type Txn interface {
	Tx
	Commit() error
	Abort() error
}

// Store is the entity store. Calls made on the Store directly run outside
// any transaction.
type Store interface {
	Tx
	Begin(ctx context.Context) (Txn, error)
	// WithTx runs fn in a transaction, committing when fn returns nil and
	// rolling back otherwise. Serialization failures are retried.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
}

// LoadSets fills every owning set of p from r.
func LoadSets(ctx context.Context, r Reader, p models.Parent) error {
	for _, child := range p.ChildKinds() {
		ids, err := r.Members(ctx, models.RefOf(p), child)
		if err != nil {
			return err
		}
		p.SetMembers(child, ids)
	}
	return nil
}

// Collect converts records returned by FindMany into their concrete type.
func Collect[T models.Record](recs []models.Record) []T {
	out := make([]T, 0, len(recs))
	for _, rec := range recs {
		if v, ok := rec.(T); ok {
			out = append(out, v)
		}
	}
	return out
}
