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

var _ repository.VoucherRepository = (*VoucherRepo)(nil)

// VoucherRepo implementación de VoucherRepository (usable con pool o tx).
type VoucherRepo struct {
	q Querier
}

// NewVoucherRepository construye el adaptador.
func NewVoucherRepository(q Querier) *VoucherRepo {
	return &VoucherRepo{q: q}
}

const voucherColumns = `id, voucher_number, type, source_document_number, provider_name, provider_code, provider_id,
	department_code, amount_text, amount, issue_date, invoice_id, source_file, created_at, updated_at`

// Create persiste un vale. Número repetido → ErrDuplicateNaturalKey.
func (r *VoucherRepo) Create(ctx context.Context, v *entity.Voucher) error {
	query := `
		INSERT INTO vouchers (` + voucherColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`
	_, err := r.q.Exec(ctx, query,
		v.ID, v.VoucherNumber, v.Type, v.SourceDocumentNumber, v.ProviderName, v.ProviderCode, v.ProviderID,
		v.DepartmentCode, v.AmountText, v.Amount, v.IssueDate, v.InvoiceID, v.SourceFile, v.CreatedAt, v.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert voucher", err)
	}
	return nil
}

// GetByNumber obtiene un vale por su número.
func (r *VoucherRepo) GetByNumber(ctx context.Context, voucherNumber string) (*entity.Voucher, error) {
	return r.getOne(ctx, "get voucher", `SELECT `+voucherColumns+` FROM vouchers WHERE voucher_number = $1`, voucherNumber)
}

// GetByInvoiceID obtiene el vale ligado a una factura.
func (r *VoucherRepo) GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Voucher, error) {
	return r.getOne(ctx, "get voucher by invoice", `SELECT `+voucherColumns+` FROM vouchers WHERE invoice_id = $1`, invoiceID)
}

// UpdateLink liga el vale a la factura solo si aún no tiene una.
func (r *VoucherRepo) UpdateLink(ctx context.Context, voucherID, invoiceID string, providerID *string) (bool, error) {
	tag, err := r.q.Exec(ctx, `
		UPDATE vouchers SET invoice_id = $2, provider_id = COALESCE(provider_id, $3), updated_at = $4
		WHERE id = $1 AND invoice_id IS NULL`,
		voucherID, invoiceID, providerID, time.Now().UTC())
	if err != nil {
		return false, mapWriteError("link voucher", err)
	}
	return tag.RowsAffected() == 1, nil
}

// UpdateAmountText reemplaza el importe con letra.
func (r *VoucherRepo) UpdateAmountText(ctx context.Context, voucherID, amountText string) error {
	_, err := r.q.Exec(ctx, `UPDATE vouchers SET amount_text = $2, updated_at = $3 WHERE id = $1`,
		voucherID, amountText, time.Now().UTC())
	if err != nil {
		return mapWriteError("update voucher amount text", err)
	}
	return nil
}

// ListUnlinked lista los vales sin factura.
func (r *VoucherRepo) ListUnlinked(ctx context.Context) ([]*entity.Voucher, error) {
	return r.list(ctx, `SELECT `+voucherColumns+` FROM vouchers WHERE invoice_id IS NULL ORDER BY created_at, voucher_number`)
}

// ListAll lista todos los vales.
func (r *VoucherRepo) ListAll(ctx context.Context) ([]*entity.Voucher, error) {
	return r.list(ctx, `SELECT `+voucherColumns+` FROM vouchers ORDER BY created_at, voucher_number`)
}

func (r *VoucherRepo) list(ctx context.Context, query string) ([]*entity.Voucher, error) {
	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list vouchers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Voucher
	for rows.Next() {
		v, err := scanVoucher(rows)
		if err != nil {
			return nil, fmt.Errorf("scan voucher: %w", err)
		}
		list = append(list, v)
	}
	return list, rows.Err()
}

func (r *VoucherRepo) getOne(ctx context.Context, op, query string, arg any) (*entity.Voucher, error) {
	v, err := scanVoucher(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return v, nil
}

func scanVoucher(row pgx.Row) (*entity.Voucher, error) {
	var v entity.Voucher
	if err := row.Scan(&v.ID, &v.VoucherNumber, &v.Type, &v.SourceDocumentNumber, &v.ProviderName, &v.ProviderCode,
		&v.ProviderID, &v.DepartmentCode, &v.AmountText, &v.Amount, &v.IssueDate, &v.InvoiceID, &v.SourceFile,
		&v.CreatedAt, &v.UpdatedAt); err != nil {
		return nil, err
	}
	return &v, nil
}
