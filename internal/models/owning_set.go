package models

import "time"

// SetEntry is one member of a parent's owning set. Rows are appended and
// removed only by the integrity engine; Seq orders members by insertion.
type SetEntry struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerID    string    `gorm:"type:uuid;not null;index"`
	ParentKind Kind      `gorm:"size:32;not null;uniqueIndex:idx_owning_sets_member,priority:1"`
	ParentID   string    `gorm:"type:uuid;not null;uniqueIndex:idx_owning_sets_member,priority:2"`
	ChildKind  Kind      `gorm:"size:32;not null;uniqueIndex:idx_owning_sets_member,priority:3"`
	ChildID    string    `gorm:"type:uuid;not null;uniqueIndex:idx_owning_sets_member,priority:4;index"`
	CreatedAt  time.Time
}

// TableName overrides the default table name.
func (SetEntry) TableName() string { return "owning_sets" }
