package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"pocketbook/internal/logger"
	"pocketbook/internal/models"
	"pocketbook/internal/uuid"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const defaultOrder = "id ASC"

// Options tunes the gorm store.
type Options struct {
	// MaxAttempts bounds how often WithTx runs a transaction that keeps
	// failing with a retryable error.
	MaxAttempts int
	// Backoff is the delay before the second attempt; it doubles after that.
	Backoff time.Duration
}

type gormStore struct {
	db   *gorm.DB
	opts Options
}

type gormTxn struct {
	gormStore
}

// New returns a Store backed by db.
func New(db *gorm.DB, opts Options) Store {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = 1
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 20 * time.Millisecond
	}
	return &gormStore{db: db, opts: opts}
}

func (s *gormStore) conn(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx)
}

func (s *gormStore) Find(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	return s.find(ctx, kind, id, false)
}

func (s *gormStore) FindForUpdate(ctx context.Context, kind models.Kind, id string) (models.Record, error) {
	return s.find(ctx, kind, id, true)
}

func (s *gormStore) find(ctx context.Context, kind models.Kind, id string, lock bool) (models.Record, error) {
	rec := models.NewRecord(kind)
	if rec == nil {
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if !uuid.IsValid(id) {
		return nil, ErrNotFound
	}
	q := s.conn(ctx)
	if lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	if err := q.First(rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if p, ok := rec.(models.Parent); ok {
		if err := LoadSets(ctx, s, p); err != nil {
			return nil, err
		}
	}
	return rec, nil
}

func (s *gormStore) FindMany(ctx context.Context, kind models.Kind, f Filter) ([]models.Record, error) {
	q := f.apply(s.conn(ctx), true)

	var (
		recs []models.Record
		err  error
	)
	switch kind {
	case models.KindUser:
		recs, err = findAll[models.User](q)
	case models.KindWallet:
		recs, err = findAll[models.Wallet](q)
	case models.KindCategory:
		recs, err = findAll[models.Category](q)
	case models.KindBudgetElement:
		recs, err = findAll[models.BudgetElement](q)
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
	if err != nil {
		return nil, err
	}
	if err := s.loadSetsMany(ctx, kind, recs); err != nil {
		return nil, err
	}
	return recs, nil
}

func findAll[T any, PT interface {
	*T
	models.Record
}](q *gorm.DB) ([]models.Record, error) {
	var rows []T
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]models.Record, len(rows))
	for i := range rows {
		out[i] = PT(&rows[i])
	}
	return out, nil
}

func (s *gormStore) loadSetsMany(ctx context.Context, kind models.Kind, recs []models.Record) error {
	if len(recs) == 0 {
		return nil
	}
	first, ok := recs[0].(models.Parent)
	if !ok {
		return nil
	}
	ids := make([]string, len(recs))
	for i, rec := range recs {
		ids[i] = rec.GetID()
	}
	for _, child := range first.ChildKinds() {
		members, err := s.MembersOf(ctx, kind, ids, child)
		if err != nil {
			return err
		}
		for _, rec := range recs {
			rec.(models.Parent).SetMembers(child, members[rec.GetID()])
		}
	}
	return nil
}

func (s *gormStore) Count(ctx context.Context, kind models.Kind, f Filter) (int64, error) {
	rec := models.NewRecord(kind)
	if rec == nil {
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
	var total int64
	err := f.apply(s.conn(ctx).Model(rec), false).Count(&total).Error
	return total, err
}

func (s *gormStore) Members(ctx context.Context, parent models.Ref, child models.Kind) ([]string, error) {
	ids := []string{}
	err := s.conn(ctx).Model(&models.SetEntry{}).
		Where("parent_kind = ? AND parent_id = ? AND child_kind = ?", parent.Kind, parent.ID, child).
		Order("seq ASC").
		Pluck("child_id", &ids).Error
	return ids, err
}

func (s *gormStore) MembersOf(ctx context.Context, parentKind models.Kind, parentIDs []string, child models.Kind) (map[string][]string, error) {
	out := make(map[string][]string, len(parentIDs))
	if len(parentIDs) == 0 {
		return out, nil
	}
	var entries []models.SetEntry
	err := s.conn(ctx).
		Where("parent_kind = ? AND parent_id IN ? AND child_kind = ?", parentKind, parentIDs, child).
		Order("seq ASC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		out[e.ParentID] = append(out[e.ParentID], e.ChildID)
	}
	return out, nil
}

func (s *gormStore) Save(ctx context.Context, rec models.Record) error {
	if rec.GetID() == "" {
		return s.conn(ctx).Create(rec).Error
	}
	result := s.conn(ctx).Model(rec).
		Where("id = ?", rec.GetID()).
		Select("*").Omit("id", "created_at").
		Updates(rec)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) UpdateFields(ctx context.Context, kind models.Kind, id string, fields map[string]any, conds ...Cond) error {
	rec := models.NewRecord(kind)
	if rec == nil {
		return fmt.Errorf("unknown kind %q", kind)
	}
	if len(fields) == 0 {
		return errors.New("UpdateFields requires at least one field")
	}
	if !uuid.IsValid(id) {
		return ErrNotFound
	}

	values := make(map[string]any, len(fields))
	for col, v := range fields {
		if e, ok := v.(Expr); ok {
			v = gorm.Expr(e.SQL, e.Args...)
		}
		values[col] = v
	}

	q := s.conn(ctx).Model(rec).Where("id = ?", id)
	for _, c := range conds {
		q = q.Where(c.Query, c.Args...)
	}
	result := q.Updates(values)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) Delete(ctx context.Context, kind models.Kind, id string) error {
	rec := models.NewRecord(kind)
	if rec == nil {
		return fmt.Errorf("unknown kind %q", kind)
	}
	result := s.conn(ctx).Delete(rec, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *gormStore) DeleteMany(ctx context.Context, kind models.Kind, f Filter) (int64, error) {
	rec := models.NewRecord(kind)
	if rec == nil {
		return 0, fmt.Errorf("unknown kind %q", kind)
	}
	if len(f.Where) == 0 {
		return 0, errors.New("DeleteMany requires a filter")
	}
	result := f.apply(s.conn(ctx), false).Delete(rec)
	return result.RowsAffected, result.Error
}

func (s *gormStore) AppendToSet(ctx context.Context, owner string, parent, child models.Ref) error {
	entry := &models.SetEntry{
		OwnerID:    owner,
		ParentKind: parent.Kind,
		ParentID:   parent.ID,
		ChildKind:  child.Kind,
		ChildID:    child.ID,
	}
	return s.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(entry).Error
}

func (s *gormStore) RemoveFromSet(ctx context.Context, parent, child models.Ref) error {
	return s.conn(ctx).
		Where("parent_kind = ? AND parent_id = ? AND child_kind = ? AND child_id = ?",
			parent.Kind, parent.ID, child.Kind, child.ID).
		Delete(&models.SetEntry{}).Error
}

func (s *gormStore) DropSets(ctx context.Context, parent models.Ref) error {
	return s.conn(ctx).
		Where("parent_kind = ? AND parent_id = ?", parent.Kind, parent.ID).
		Delete(&models.SetEntry{}).Error
}

func (s *gormStore) DeleteSetsOwnedBy(ctx context.Context, owner string) (int64, error) {
	result := s.conn(ctx).Where("owner_id = ?", owner).Delete(&models.SetEntry{})
	return result.RowsAffected, result.Error
}

func (s *gormStore) Begin(ctx context.Context) (Txn, error) {
	tx := s.conn(ctx).Begin()
	if tx.Error != nil {
		return nil, tx.Error
	}
	return &gormTxn{gormStore{db: tx, opts: s.opts}}, nil
}

func (s *gormStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	delay := s.opts.Backoff
	for attempt := 1; ; attempt++ {
		err := s.conn(ctx).Transaction(func(tx *gorm.DB) error {
			return fn(&gormStore{db: tx, opts: s.opts})
		})
		if err == nil || attempt >= s.opts.MaxAttempts || !IsRetryable(err) {
			return err
		}

		logger.Get().Warnw("Retrying transaction", "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (t *gormTxn) Commit() error {
	return t.db.Commit().Error
}

func (t *gormTxn) Abort() error {
	return t.db.Rollback().Error
}

func (f Filter) apply(q *gorm.DB, paged bool) *gorm.DB {
	cols := make([]string, 0, len(f.Where))
	for col := range f.Where {
		cols = append(cols, col)
	}
	sort.Strings(cols)
	for _, col := range cols {
		switch v := f.Where[col].(type) {
		case []string:
			q = q.Where(clause.IN{Column: clause.Column{Name: col}, Values: toValues(v)})
		default:
			q = q.Where(clause.Eq{Column: clause.Column{Name: col}, Value: v})
		}
	}
	if !paged {
		return q
	}
	if f.OrderBy != "" {
		q = q.Order(f.OrderBy)
	} else {
		q = q.Order(defaultOrder)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	return q
}

func toValues(ids []string) []any {
	out := make([]any, len(ids))
	for i, id := range ids {
		out[i] = id
	}
	return out
}
