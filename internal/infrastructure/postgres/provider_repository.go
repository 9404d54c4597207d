package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

var _ repository.ProviderRepository = (*ProviderRepo)(nil)

// ProviderRepo implementación de ProviderRepository (usable con pool o tx).
type ProviderRepo struct {
	q Querier
}

// NewProviderRepository construye el adaptador. Pasar pool o tx (Querier).
func NewProviderRepository(q Querier) *ProviderRepo {
	return &ProviderRepo{q: q}
}

const providerColumns = `id, name, external_code, tax_id, ledger_account, email, phone, address, created_at, updated_at`

// Create persiste un nuevo proveedor. Un RFC repetido devuelve ErrDuplicateNaturalKey.
func (r *ProviderRepo) Create(ctx context.Context, p *entity.Provider) error {
	query := `
		INSERT INTO providers (` + providerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Name, nullIfEmpty(p.ExternalCode), nullIfEmpty(p.TaxID), p.LedgerAccount,
		p.Email, p.Phone, p.Address, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("insert provider", err)
	}
	return nil
}

// Update actualiza un proveedor. El código externo solo se escribe si estaba vacío.
func (r *ProviderRepo) Update(ctx context.Context, p *entity.Provider) error {
	query := `
		UPDATE providers SET
			name = $2,
			external_code = COALESCE(NULLIF(external_code, ''), $3),
			tax_id = $4, ledger_account = $5, email = $6, phone = $7, address = $8, updated_at = $9
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query,
		p.ID, p.Name, nullIfEmpty(p.ExternalCode), nullIfEmpty(p.TaxID), p.LedgerAccount,
		p.Email, p.Phone, p.Address, p.UpdatedAt,
	)
	if err != nil {
		return mapWriteError("update provider", err)
	}
	return nil
}

// GetByExternalCode obtiene un proveedor por código contable externo.
func (r *ProviderRepo) GetByExternalCode(ctx context.Context, code string) (*entity.Provider, error) {
	if code == "" {
		return nil, nil
	}
	return r.getOne(ctx, "get provider by code",
		`SELECT `+providerColumns+` FROM providers WHERE external_code = $1 ORDER BY id LIMIT 1`, code)
}

// GetByTaxID obtiene un proveedor por RFC.
func (r *ProviderRepo) GetByTaxID(ctx context.Context, taxID string) (*entity.Provider, error) {
	if taxID == "" {
		return nil, nil
	}
	return r.getOne(ctx, "get provider by tax_id", `SELECT `+providerColumns+` FROM providers WHERE tax_id = $1`, taxID)
}

// ListAll lista todos los proveedores ordenados por nombre.
func (r *ProviderRepo) ListAll(ctx context.Context) ([]*entity.Provider, error) {
	rows, err := r.q.Query(ctx, `SELECT `+providerColumns+` FROM providers ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("list providers: %w", err)
	}
	defer rows.Close()
	var list []*entity.Provider
	for rows.Next() {
		p, err := scanProvider(rows)
		if err != nil {
			return nil, fmt.Errorf("scan provider: %w", err)
		}
		list = append(list, p)
	}
	return list, rows.Err()
}

func (r *ProviderRepo) getOne(ctx context.Context, op, query string, arg any) (*entity.Provider, error) {
	p, err := scanProvider(r.q.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

func scanProvider(row pgx.Row) (*entity.Provider, error) {
	var p entity.Provider
	var code, taxID *string
	if err := row.Scan(&p.ID, &p.Name, &code, &taxID, &p.LedgerAccount,
		&p.Email, &p.Phone, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ExternalCode = derefString(code)
	p.TaxID = derefString(taxID)
	return &p, nil
}
