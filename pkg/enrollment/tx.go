package enrollment

import (
	"context"
	"sync"

	"github.com/naccdata/identifier-provisioning/pkg/demographics"
	"github.com/naccdata/identifier-provisioning/pkg/identifiers"
	"gorm.io/gorm"
)

// TxStores are the stores visible inside an enrollment transaction
// scope.
type TxStores struct {
	Identifiers  identifiers.Store
	Demographics demographics.Store
}

// Tx is the transactional boundary for provisioning: the identifier
// create and the fingerprint add commit or roll back together, so no
// partial state is ever visible. Implementations wrap a database
// transaction or, in memory, a coarse lock.
type Tx interface {
	RunInTx(ctx context.Context, fn func(stores TxStores) error) error
}

type GormTx struct {
	db   *gorm.DB
	wrap func(identifiers.Store) identifiers.Store
}

// NewGormTx builds the database-backed boundary. wrap, when non-nil,
// decorates the transaction-scoped identifier repository; callers
// running behind a cache pass CachedStore.WithStore here so the create
// inside the transaction still invalidates cached lookups.
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
			Identifiers:  ids,
			Demographics: demographics.NewRepository(tx),
		})
	})
}

type MemoryTx struct {
	mu     sync.Mutex
	stores TxStores
}

func NewMemoryTx(ids identifiers.Store, demo demographics.Store) *MemoryTx {
	return &MemoryTx{stores: TxStores{Identifiers: ids, Demographics: demo}}
}

func (t *MemoryTx) RunInTx(ctx context.Context, fn func(stores TxStores) error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fn(t.stores)
}
