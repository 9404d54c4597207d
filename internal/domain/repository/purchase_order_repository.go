package repository

import (
	"context"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// PurchaseOrderRepository define el puerto de persistencia para órdenes de compra.
type PurchaseOrderRepository interface {
	// Create devuelve domain.ErrDuplicateNaturalKey si la referencia ya existe.
	Create(ctx context.Context, order *entity.PurchaseOrder) error
	GetByReference(ctx context.Context, referenceNumber string) (*entity.PurchaseOrder, error)

	// UpdateLink asigna factura y proveedor solo si la orden no tiene factura.
	UpdateLink(ctx context.Context, orderID string, invoiceID string, providerID *string) (bool, error)
	UpdateAmountInWords(ctx context.Context, orderID, amountInWords string) error
	ListUnlinked(ctx context.Context) ([]*entity.PurchaseOrder, error)
	ListAll(ctx context.Context) ([]*entity.PurchaseOrder, error)
}
