package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
)

var _ autocarga.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// RunInTx inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
func (r *TxRunner) RunInTx(ctx context.Context, fn func(repos autocarga.Repositories) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(NewRepositories(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// NewRepositories arma los cuatro repositorios sobre el mismo Querier (pool o tx).
func NewRepositories(q Querier) autocarga.Repositories {
	return autocarga.Repositories{
		Providers:      NewProviderRepository(q),
		Invoices:       NewInvoiceRepository(q),
		Vouchers:       NewVoucherRepository(q),
		PurchaseOrders: NewPurchaseOrderRepository(q),
	}
}
