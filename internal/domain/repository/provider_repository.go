package repository

import (
	"context"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// ProviderRepository define el puerto de persistencia para Provider.
// Los getters devuelven (nil, nil) cuando no existe el registro.
type ProviderRepository interface {
	Create(ctx context.Context, provider *entity.Provider) error
	Update(ctx context.Context, provider *entity.Provider) error
	GetByExternalCode(ctx context.Context, code string) (*entity.Provider, error)
	GetByTaxID(ctx context.Context, taxID string) (*entity.Provider, error)

	// ListAll devuelve el conjunto de candidatos para el matcher por nombre,
	// ordenado por nombre.
	ListAll(ctx context.Context) ([]*entity.Provider, error)
}
