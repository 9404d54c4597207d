package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher representa un vale (solicitud interna de pago) extraído de un PDF.
// InvoiceID se llena cuando el vale se vincula a una factura; nunca es
// requerido al crearlo.
type Voucher struct {
	ID                   string
	VoucherNumber        string
	Type                 string
	SourceDocumentNumber string // texto libre con serie/folio de la factura
	ProviderName         string
	ProviderCode         string
	ProviderID           *string
	DepartmentCode       *int
	AmountText           string
	Amount               decimal.Decimal
	IssueDate            *time.Time
	InvoiceID            *string
	SourceFile           string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// IsLinked informa si el vale ya tiene factura asociada.
func (v *Voucher) IsLinked() bool {
	return v.InvoiceID != nil && *v.InvoiceID != ""
}
