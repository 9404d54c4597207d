package autocarga

import (
	"context"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

// DocumentExtractor lee un PDF y devuelve sus campos crudos según el layout.
// Un archivo que no se puede abrir devuelve domain.ErrUnreadableDocument.
type DocumentExtractor interface {
	Extract(ctx context.Context, path string) (*entity.ExtractedDocument, error)
}

// CFDIParser lee un XML CFDI 4.0. Esquema o sintaxis inválidos devuelven
// domain.ErrMalformedDocument.
type CFDIParser interface {
	Parse(ctx context.Context, path string) (*entity.CFDIInvoice, error)
}

// Repositories repositorios atados a una misma transacción.
type Repositories struct {
	Providers      repository.ProviderRepository
	Invoices       repository.InvoiceRepository
	Vouchers       repository.VoucherRepository
	PurchaseOrders repository.PurchaseOrderRepository
}

// TxRunner ejecuta fn dentro de una transacción local; si fn devuelve error
// se hace rollback de todo lo escrito por fn.
type TxRunner interface {
	RunInTx(ctx context.Context, fn func(repos Repositories) error) error
}

// ReportRenderer genera el resumen de la corrida en PDF.
type ReportRenderer interface {
	Render(report *RunReport) ([]byte, error)
}
