package repository

import (
	"context"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// VoucherRepository define el puerto de persistencia para vales.
type VoucherRepository interface {
	// Create devuelve domain.ErrDuplicateNaturalKey si el número de vale ya existe.
	Create(ctx context.Context, voucher *entity.Voucher) error
	GetByNumber(ctx context.Context, voucherNumber string) (*entity.Voucher, error)
	GetByInvoiceID(ctx context.Context, invoiceID string) (*entity.Voucher, error)

	// UpdateLink asigna factura y proveedor solo si el vale no tiene factura.
	// Devuelve false si ya estaba vinculado.
	UpdateLink(ctx context.Context, voucherID string, invoiceID string, providerID *string) (bool, error)
	UpdateAmountText(ctx context.Context, voucherID, amountText string) error
	ListUnlinked(ctx context.Context) ([]*entity.Voucher, error)
	ListAll(ctx context.Context) ([]*entity.Voucher, error)
}
