package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice representa una factura de proveedor (CFDI). La llave natural es
// (ProviderID, Series, Number).
type Invoice struct {
	ID               string
	ProviderID       string
	Series           string
	Number           string // folio
	IssueDate        time.Time
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal // IVA trasladado
	WithheldVAT      decimal.Decimal // retención IVA (002)
	WithheldISR      decimal.Decimal // retención ISR (001)
	Total            decimal.Decimal
	FiscalUUID       string // UUID del timbre fiscal, opcional
	LedgerAccount    *int
	LoadedIntoLedger bool
	Paid             bool
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Concept representa una línea (concepto) de la factura.
type Concept struct {
	ID          string
	InvoiceID   string
	Quantity    decimal.Decimal
	Description string
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}
