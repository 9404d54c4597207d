package repository

import (
	"context"
	"time"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// InvoiceScope filtro para armar el conjunto de trabajo de facturas candidatas.
// Nunca se compara contra la tabla completa.
type InvoiceScope struct {
	ProviderID string     // vacío = cualquier proveedor
	Since      *time.Time // facturas emitidas desde esta fecha
	OnlyUnpaid bool
	Limit      int // 0 = sin límite
}

// InvoiceRepository define el puerto de persistencia para Invoice y sus conceptos.
type InvoiceRepository interface {
	// Create persiste la cabecera. Devuelve domain.ErrDuplicateNaturalKey si ya
	// existe (ProviderID, Series, Number).
	Create(ctx context.Context, invoice *entity.Invoice) error
	CreateConcept(ctx context.Context, concept *entity.Concept) error
	GetByNaturalKey(ctx context.Context, providerID, series, number string) (*entity.Invoice, error)
	FindCandidates(ctx context.Context, scope InvoiceScope) ([]*entity.Invoice, error)
	ListConcepts(ctx context.Context, invoiceID string) ([]*entity.Concept, error)
}
