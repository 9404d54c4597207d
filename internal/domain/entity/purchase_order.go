package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder representa una orden de compra/pago extraída de un PDF.
// No trae serie ni folio: se vincula a la factura por proveedor + importe.
type PurchaseOrder struct {
	ID                  string
	ReferenceNumber     string
	ProviderAccountCode string
	ProviderName        string
	ProviderID          *string
	Amount              decimal.Decimal
	AmountInWords       string
	IssueDate           *time.Time
	InvoiceID           *string
	LedgerAccount       *int
	SourceFile          string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// IsLinked informa si la orden ya tiene factura asociada.
func (o *PurchaseOrder) IsLinked() bool {
	return o.InvoiceID != nil && *o.InvoiceID != ""
}
