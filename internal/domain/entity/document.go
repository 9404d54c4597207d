package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// DocumentKind clasificación del PDF según su layout.
type DocumentKind string

const (
	DocumentKindVoucher       DocumentKind = "voucher"
	DocumentKindPurchaseOrder DocumentKind = "purchase_order"
	DocumentKindUnknown       DocumentKind = "unknown"
)

// FieldLabel etiqueta de un campo extraído.
type FieldLabel string

// Campos del vale.
const (
	FieldVoucherNumber  FieldLabel = "voucher_number"
	FieldVoucherType    FieldLabel = "voucher_type"
	FieldSourceDocument FieldLabel = "source_document"
	FieldProviderName   FieldLabel = "provider_name"
	FieldProviderCode   FieldLabel = "provider_code"
	FieldIssueDate      FieldLabel = "issue_date"
	FieldAmount         FieldLabel = "amount"
	FieldAmountText     FieldLabel = "amount_text"
	FieldDepartment     FieldLabel = "department"
)

// Campos de la orden de compra.
const (
	FieldReferenceNumber     FieldLabel = "reference_number"
	FieldProviderAccountCode FieldLabel = "provider_account_code"
	FieldAmountInWords       FieldLabel = "amount_in_words"
	FieldLedgerAccount       FieldLabel = "ledger_account"
)

// ExtractedDocument resultado crudo del extractor. Los campos que el layout
// no encuentra simplemente no están en el mapa.
type ExtractedDocument struct {
	Path   string
	Kind   DocumentKind
	Fields map[FieldLabel]string
}

// Field devuelve el valor crudo y si estaba presente.
func (d *ExtractedDocument) Field(label FieldLabel) (string, bool) {
	if d == nil || d.Fields == nil {
		return "", false
	}
	v, ok := d.Fields[label]
	return v, ok
}

// CFDIParty emisor o receptor del comprobante.
type CFDIParty struct {
	RFC    string
	Name   string
	Regime string
}

// CFDIConcept línea del comprobante, en el orden del XML.
type CFDIConcept struct {
	Quantity    decimal.Decimal
	Description string
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// CFDIInvoice comprobante CFDI 4.0 ya parseado.
type CFDIInvoice struct {
	Path           string
	Version        string
	Series         string
	Folio          string
	IssueDate      time.Time
	Subtotal       decimal.Decimal
	Total          decimal.Decimal
	Currency       string
	FiscalUUID     string
	Issuer         CFDIParty
	Receiver       CFDIParty
	TransferredTax decimal.Decimal
	WithheldVAT    decimal.Decimal // Retencion Impuesto=002
	WithheldISR    decimal.Decimal // Retencion Impuesto=001
	Concepts       []CFDIConcept
}
