package entity

import "time"

// Provider representa un proveedor. TaxID es el RFC (único cuando no está vacío);
// ExternalCode es el código del sistema contable externo y, una vez asignado,
// no se sobrescribe con un valor distinto.
type Provider struct {
	ID            string
	Name          string
	ExternalCode  string // vacío = sin código
	TaxID         string // RFC
	LedgerAccount *int   // cuenta contable
	Email         string
	Phone         string
	Address       string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// HasExternalCode informa si el proveedor ya tiene código externo.
func (p *Provider) HasExternalCode() bool {
	return p != nil && p.ExternalCode != ""
}
