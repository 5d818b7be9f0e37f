package models

// Kind names one of the four entity types.
type Kind string

const (
	KindUser          Kind = "user"
	KindWallet        Kind = "wallet"
	KindCategory      Kind = "category"
	KindBudgetElement Kind = "budget_element"
)

// Ref is a typed reference to an entity.
type Ref struct {
	Kind Kind
	ID   string
}

// Record is implemented by every entity.
type Record interface {
	GetID() string
	Kind() Kind
	// OwnerID returns the id of the user the record belongs to.
	OwnerID() string
}

// Child is a record holding forward references to the parents whose
// owning sets must list it.
type Child interface {
	Record
	Parents() []Ref
}

// Parent is a record that exposes owning sets of child ids.
type Parent interface {
	Record
	ChildKinds() []Kind
	SetMembers(child Kind, ids []string)
}

// RefOf returns the reference to rec.
func RefOf(rec Record) Ref {
	return Ref{Kind: rec.Kind(), ID: rec.GetID()}
}

// NewRecord returns an empty record of the given kind, or nil for an unknown kind.
func NewRecord(kind Kind) Record {
	switch kind {
	case KindUser:
		return &User{}
	case KindWallet:
		return &Wallet{}
	case KindCategory:
		return &Category{}
	case KindBudgetElement:
		return &BudgetElement{}
	}
	return nil
}

func idsOrEmpty(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
