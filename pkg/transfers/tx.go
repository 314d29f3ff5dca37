package transfers

import (
	"context"
	"sync"

	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
	"gorm.io/gorm"
)

// TxStores are the stores visible inside a transfer transaction scope.
type TxStores struct {
	Identifiers identifiers.Store
	Registry    Registry
}

// Tx is the transactional boundary for the transfer success terminals:
// claiming the counterpart pending record and linking the new center
// identity commit or roll back together. Implementations wrap a
// database transaction or, in memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(stores TxStores) error) error
}

type GormTx struct {
	db   *gorm.DB
	wrap func(identifiers.Store) identifiers.Store
}

// NewGormTx builds the database-backed boundary. wrap, when non-nil,
// decorates the transaction-scoped identifier repository; callers
// running behind a cache pass CachedStore.WithStore here so writes
// inside the transaction still invalidate cached lookups.
func NewGormTx(db *gorm.DB, wrap func(identifiers.Store) identifiers.Store) *GormTx {
	return &GormTx{db: db, wrap: wrap}
}

func (t *GormTx) RunInTx(ctx context.Context, fn func(stores TxStores) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids identifiers.Store = identifiers.NewRepository(tx)
		if t.wrap != nil {
			ids = t.wrap(ids)
		}
		return fn(TxStores{
			Identifiers: ids,
			Registry:    NewRepository(tx),
		})
	})
}

type MemoryTx struct {
	mu     sync.Mutex
	stores TxStores
}

func NewMemoryTx(ids identifiers.Store, registry Registry) *MemoryTx {
	return &MemoryTx{stores: TxStores{Identifiers: ids, Registry: registry}}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(stores TxStores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.stores)
}
