package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

var _ repository.InvoiceRepository = (*InvoiceRepo)(nil)

// InvoiceRepo implementación de InvoiceRepository (usable con pool o tx).
type InvoiceRepo struct {
	q Querier
}

// NewInvoiceRepository construye el adaptador.
func NewInvoiceRepository(q Querier) *InvoiceRepo {
	return &InvoiceRepo{q: q}
}

const invoiceColumns = `id, provider_id, series, number, issue_date, subtotal, tax, withheld_vat, withheld_isr, total,
	fiscal_uuid, ledger_account, loaded_into_ledger, paid, created_at, updated_at`

// Create persiste la cabecera de la factura.
func (r *InvoiceRepo) Create(ctx context.Context, inv *entity.Invoice) error {
	query := `
		INSERT INTO invoices (` + invoiceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`
	_, err := r.q.Exec(ctx, query,
		inv.ID, inv.ProviderID, inv.Series, inv.Number, inv.IssueDate,
		inv.Subtotal, inv.Tax, inv.WithheldVAT, inv.WithheldISR, inv.Total,
		nullIfEmpty(inv.FiscalUUID), inv.LedgerAccount, inv.LoadedIntoLedger, inv.Paid,
		inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert invoice", err)
	}
	return nil
}

// CreateConcept persiste una línea de la factura.
func (r *InvoiceRepo) CreateConcept(ctx context.Context, c *entity.Concept) error {
	query := `
		INSERT INTO concepts (id, invoice_id, quantity, description, unit_price, amount)
		VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.q.Exec(ctx, query, c.ID, c.InvoiceID, c.Quantity, c.Description, c.UnitPrice, c.Amount)
	if err != nil {
		return mapWriteError("insert concept", err)
	}
	return nil
}

// GetByNaturalKey obtiene una factura por (proveedor, serie, folio).
func (r *InvoiceRepo) GetByNaturalKey(ctx context.Context, providerID, series, number string) (*entity.Invoice, error) {
	return r.getOne(ctx, "get invoice by natural key",
		`SELECT `+invoiceColumns+` FROM invoices WHERE provider_id = $1 AND series = $2 AND number = $3`,
		providerID, series, number)
}

// FindCandidates arma el conjunto de trabajo del matcher según el filtro.
// El orden (fecha desc, id) es el que el matcher usa para desempatar.
func (r *InvoiceRepo) FindCandidates(ctx context.Context, scope repository.InvoiceScope) ([]*entity.Invoice, error) {
	var (
		where []string
		args  []any
	)
	if scope.ProviderID != "" {
		args = append(args, scope.ProviderID)
		where = append(where, fmt.Sprintf("provider_id = $%d", len(args)))
	}
	if scope.Since != nil {
		args = append(args, *scope.Since)
		where = append(where, fmt.Sprintf("issue_date >= $%d", len(args)))
	}
	if scope.OnlyUnpaid {
		where = append(where, "paid = FALSE")
	}
	query := `SELECT ` + invoiceColumns + ` FROM invoices`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY issue_date DESC, id`
	if scope.Limit > 0 {
		args = append(args, scope.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find invoice candidates: %w", err)
	}
	defer rows.Close()
	var list []*entity.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invoice: %w", err)
		}
		list = append(list, inv)
	}
	return list, rows.Err()
}

// ListConcepts lista los conceptos en el orden en que se insertaron.
func (r *InvoiceRepo) ListConcepts(ctx context.Context, invoiceID string) ([]*entity.Concept, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, invoice_id, quantity, description, unit_price, amount
		FROM concepts WHERE invoice_id = $1 ORDER BY position`, invoiceID)
	if err != nil {
		return nil, fmt.Errorf("list concepts: %w", err)
	}
	defer rows.Close()
	var list []*entity.Concept
	for rows.Next() {
		var c entity.Concept
		if err := rows.Scan(&c.ID, &c.InvoiceID, &c.Quantity, &c.Description, &c.UnitPrice, &c.Amount); err != nil {
			return nil, fmt.Errorf("scan concept: %w", err)
		}
		list = append(list, &c)
	}
	return list, rows.Err()
}

func (r *InvoiceRepo) getOne(ctx context.Context, op, query string, args ...any) (*entity.Invoice, error) {
	inv, err := scanInvoice(r.q.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return inv, nil
}

func scanInvoice(row pgx.Row) (*entity.Invoice, error) {
	var inv entity.Invoice
	var fiscalUUID *string
	if err := row.Scan(&inv.ID, &inv.ProviderID, &inv.Series, &inv.Number, &inv.IssueDate,
		&inv.Subtotal, &inv.Tax, &inv.WithheldVAT, &inv.WithheldISR, &inv.Total,
		&fiscalUUID, &inv.LedgerAccount, &inv.LoadedIntoLedger, &inv.Paid,
		&inv.CreatedAt, &inv.UpdatedAt); err != nil {
		return nil, err
	}
	inv.FiscalUUID = derefString(fiscalUUID)
	return &inv, nil
}
