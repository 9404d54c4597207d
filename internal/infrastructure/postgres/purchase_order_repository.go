package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

var _ repository.PurchaseOrderRepository = (*PurchaseOrderRepo)(nil)

// PurchaseOrderRepo implementación de PurchaseOrderRepository (usable con pool o tx).
type PurchaseOrderRepo struct {
	q Querier
}

// NewPurchaseOrderRepository construye el adaptador.
func NewPurchaseOrderRepository(q Querier) *PurchaseOrderRepo {
	return &PurchaseOrderRepo{q: q}
}

const purchaseOrderColumns = `id, reference_number, provider_account_code, provider_name, provider_id, amount,
	amount_in_words, issue_date, invoice_id, ledger_account, source_file, created_at, updated_at`

// Create persiste una orden. Referencia repetida → ErrDuplicateNaturalKey.
func (r *PurchaseOrderRepo) Create(ctx context.Context, o *entity.PurchaseOrder) error {
	query := `
		INSERT INTO purchase_orders (` + purchaseOrderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`
	_, err := r.q.Exec(ctx, query,
		o.ID, o.ReferenceNumber, o.ProviderAccountCode, o.ProviderName, o.ProviderID, o.Amount,
		o.AmountInWords, o.IssueDate, o.InvoiceID, o.LedgerAccount, o.SourceFile, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert purchase order", err)
	}
	return nil
}

// GetByReference obtiene una orden por su número de referencia.
func (r *PurchaseOrderRepo) GetByReference(ctx context.Context, referenceNumber string) (*entity.PurchaseOrder, error) {
	o, err := scanPurchaseOrder(r.q.QueryRow(ctx,
		`SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE reference_number = $1`, referenceNumber))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get purchase order: %w", err)
	}
	return o, nil
}

// UpdateLink liga la orden a la factura solo si aún no tiene una.
func (r *PurchaseOrderRepo) UpdateLink(ctx context.Context, orderID, invoiceID string, providerID *string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE purchase_orders SET invoice_id = $2, provider_id = COALESCE(provider_id, $3), updated_at = $4
		WHERE id = $1 AND invoice_id IS NULL`,
		orderID, invoiceID, providerID, time.Now().UTC())
	if err != nil {
		return false, mapWriteError("link purchase order", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAmountInWords reemplaza el importe con letra.
func (r *PurchaseOrderRepo) UpdateAmountInWords(ctx context.Context, orderID, amountInWords string) error {
	_, err := r.q.Exec(ctx, `UPDATE purchase_orders SET amount_in_words = $2, updated_at = $3 WHERE id = $1`,
		orderID, amountInWords, time.Now().UTC())
	if err != nil {
		return mapWriteError("update purchase order amount in words", err)
	}
	return nil
}

// ListUnlinked lista las órdenes sin factura.
func (r *PurchaseOrderRepo) ListUnlinked(ctx context.Context) ([]*entity.PurchaseOrder, error) {
	return r.list(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders WHERE invoice_id IS NULL ORDER BY created_at, reference_number`)
}

// ListAll lista todas las órdenes.
func (r *PurchaseOrderRepo) ListAll(ctx context.Context) ([]*entity.PurchaseOrder, error) {
	return r.list(ctx, `SELECT `+purchaseOrderColumns+` FROM purchase_orders ORDER BY created_at, reference_number`)
}

func (r *PurchaseOrderRepo) list(ctx context.Context, query string) ([]*entity.PurchaseOrder, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list purchase orders: %w", err)
	}
	defer rows.Close()
	var list []*entity.PurchaseOrder
	for rows.Next() {
		o, err := scanPurchaseOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan purchase order: %w", err)
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

func scanPurchaseOrder(row pgx.Row) (*entity.PurchaseOrder, error) {
	var o entity.PurchaseOrder
	if err := row.Scan(&o.ID, &o.ReferenceNumber, &o.ProviderAccountCode, &o.ProviderName, &o.ProviderID, &o.Amount,
		&o.AmountInWords, &o.IssueDate, &o.InvoiceID, &o.LedgerAccount, &o.SourceFile, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	return &o, nil
}
