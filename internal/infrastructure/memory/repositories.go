package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

var (
	_ repository.ProviderRepository      = (*providerRepo)(nil)
	_ repository.InvoiceRepository       = (*invoiceRepo)(nil)
	_ repository.VoucherRepository       = (*voucherRepo)(nil)
	_ repository.PurchaseOrderRepository = (*purchaseOrderRepo)(nil)
)

// Los repos corren con s.mu tomado por RunInTx.

// ── Proveedores ──────────────────────────────────────────────────────────────

type providerRepo struct{ s *Store }

func (r *providerRepo) Create(_ context.Context, p *entity.Provider) error {
	d := r.s.data
	if _, ok := d.providers[p.ID]; ok {
		return fmt.Errorf("insert provider: %w", domain.ErrDuplicateNaturalKey)
	}
	if p.TaxID != "" && r.taxIDTaken(p.TaxID, p.ID) {
		return fmt.Errorf("insert provider: %w", domain.ErrDuplicateNaturalKey)
	}
	d.providers[p.ID] = copyProvider(*p)
	return nil
}

func (r *providerRepo) Update(_ context.Context, p *entity.Provider) error {
	d := r.s.data
	cur, ok := d.providers[p.ID]
	if !ok {
		return fmt.Errorf("update provider: %w", domain.ErrNotFound)
	}
	if p.TaxID != "" && r.taxIDTaken(p.TaxID, p.ID) {
		return fmt.Errorf("update provider: %w", domain.ErrDuplicateNaturalKey)
	}
	next := copyProvider(*p)
	next.CreatedAt = cur.CreatedAt
	if cur.ExternalCode != "" {
		next.ExternalCode = cur.ExternalCode
	}
	d.providers[p.ID] = next
	return nil
}

func (r *providerRepo) taxIDTaken(taxID, exceptID string) bool {
	for id, p := range r.s.data.providers {
		if id != exceptID && p.TaxID == taxID {
			return true
		}
	}
	return false
}

func (r *providerRepo) GetByExternalCode(_ context.Context, code string) (*entity.Provider, error) {
	if code == "" {
		return nil, nil
	}
	for _, p := range r.sorted(func(a, b entity.Provider) bool { return a.ID < b.ID }) {
		if p.ExternalCode == code {
			return p, nil
		}
	}
	return nil, nil
}

func (r *providerRepo) GetByTaxID(_ context.Context, taxID string) (*entity.Provider, error) {
	if taxID == "" {
		return nil, nil
	}
	for _, p := range r.s.data.providers {
		if p.TaxID == taxID {
			out := copyProvider(p)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *providerRepo) ListAll(_ context.Context) ([]*entity.Provider, error) {
	return r.sorted(func(a, b entity.Provider) bool {
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.ID < b.ID
	}), nil
}

func (r *providerRepo) sorted(less func(a, b entity.Provider) bool) []*entity.Provider {
	list := make([]*entity.Provider, 0, len(r.s.data.providers))
	for _, p := range r.s.data.providers {
		c := copyProvider(p)
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool { return less(*list[i], *list[j]) })
	return list
}

// ── Facturas ─────────────────────────────────────────────────────────────────

type invoiceRepo struct{ s *Store }

func (r *invoiceRepo) Create(_ context.Context, inv *entity.Invoice) error {
	d := r.s.data
	if _, ok := d.invoices[inv.ID]; ok {
		return fmt.Errorf("insert invoice: %w", domain.ErrDuplicateNaturalKey)
	}
	if _, ok := d.providers[inv.ProviderID]; !ok {
		return fmt.Errorf("insert invoice: proveedor %s inexistente: %w", inv.ProviderID, domain.ErrPersistenceConflict)
	}
	for _, cur := range d.invoices {
		if cur.ProviderID == inv.ProviderID && cur.Series == inv.Series && cur.Number == inv.Number {
			return fmt.Errorf("insert invoice: %w", domain.ErrDuplicateNaturalKey)
		}
	}
	d.invoices[inv.ID] = copyInvoice(*inv)
	return nil
}

func (r *invoiceRepo) CreateConcept(_ context.Context, c *entity.Concept) error {
	d := r.s.data
	if _, ok := d.invoices[c.InvoiceID]; !ok {
		return fmt.Errorf("insert concept: factura %s inexistente: %w", c.InvoiceID, domain.ErrPersistenceConflict)
	}
	d.concepts[c.InvoiceID] = append(d.concepts[c.InvoiceID], *c)
	return nil
}

func (r *invoiceRepo) GetByNaturalKey(_ context.Context, providerID, series, number string) (*entity.Invoice, error) {
	for _, inv := range r.s.data.invoices {
		if inv.ProviderID == providerID && inv.Series == series && inv.Number == number {
			out := copyInvoice(inv)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *invoiceRepo) FindCandidates(_ context.Context, scope repository.InvoiceScope) ([]*entity.Invoice, error) {
	var list []*entity.Invoice
	for _, inv := range r.s.data.invoices {
		if scope.ProviderID != "" && inv.ProviderID != scope.ProviderID {
			continue
		}
		if scope.Since != nil && inv.IssueDate.Before(*scope.Since) {
			continue
		}
		if scope.OnlyUnpaid && inv.Paid {
			continue
		}
		c := copyInvoice(inv)
		list = append(list, &c)
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].IssueDate.Equal(list[j].IssueDate) {
			return list[i].IssueDate.After(list[j].IssueDate)
		}
		return list[i].ID < list[j].ID
	})
	if scope.Limit > 0 && len(list) > scope.Limit {
		list = list[:scope.Limit]
	}
	return list, nil
}

func (r *invoiceRepo) ListConcepts(_ context.Context, invoiceID string) ([]*entity.Concept, error) {
	src := r.s.data.concepts[invoiceID]
	list := make([]*entity.Concept, 0, len(src))
	for i := range src {
		c := src[i]
		list = append(list, &c)
	}
	return list, nil
}

// ── Vales ────────────────────────────────────────────────────────────────────

type voucherRepo struct{ s *Store }

func (r *voucherRepo) Create(_ context.Context, v *entity.Voucher) error {
	d := r.s.data
	if _, ok := d.vouchers[v.ID]; ok {
		return fmt.Errorf("insert voucher: %w", domain.ErrDuplicateNaturalKey)
	}
	for _, cur := range d.vouchers {
		if cur.VoucherNumber == v.VoucherNumber {
			return fmt.Errorf("insert voucher: %w", domain.ErrDuplicateNaturalKey)
		}
		if v.IsLinked() && cur.IsLinked() && *cur.InvoiceID == *v.InvoiceID {
			return fmt.Errorf("insert voucher: %w", domain.ErrDuplicateNaturalKey)
		}
	}
	d.vouchers[v.ID] = copyVoucher(*v)
	return nil
}

func (r *voucherRepo) GetByNumber(_ context.Context, voucherNumber string) (*entity.Voucher, error) {
	return r.find(func(v entity.Voucher) bool { return v.VoucherNumber == voucherNumber }), nil
}

func (r *voucherRepo) GetByInvoiceID(_ context.Context, invoiceID string) (*entity.Voucher, error) {
	return r.find(func(v entity.Voucher) bool { return v.IsLinked() && *v.InvoiceID == invoiceID }), nil
}

func (r *voucherRepo) find(match func(entity.Voucher) bool) *entity.Voucher {
	for _, v := range r.s.data.vouchers {
		if match(v) {
			out := copyVoucher(v)
			return &out
		}
	}
	return nil
}

func (r *voucherRepo) UpdateLink(_ context.Context, voucherID, invoiceID string, providerID *string) (bool, error) {
	d := r.s.data
	v, ok := d.vouchers[voucherID]
	if !ok || v.IsLinked() {
		return false, nil
	}
	for id, other := range d.vouchers {
		if id != voucherID && other.IsLinked() && *other.InvoiceID == invoiceID {
			return false, fmt.Errorf("link voucher: %w", domain.ErrDuplicateNaturalKey)
		}
	}
	v.InvoiceID = &invoiceID
	if v.ProviderID == nil {
		v.ProviderID = copyString(providerID)
	}
	v.UpdatedAt = time.Now().UTC()
	d.vouchers[voucherID] = v
	return true, nil
}

func (r *voucherRepo) UpdateAmountText(_ context.Context, voucherID, amountText string) error {
	v, ok := r.s.data.vouchers[voucherID]
	if !ok {
		return fmt.Errorf("update voucher amount text: %w", domain.ErrNotFound)
	}
	v.AmountText = amountText
	v.UpdatedAt = time.Now().UTC()
	r.s.data.vouchers[voucherID] = v
	return nil
}

func (r *voucherRepo) ListUnlinked(_ context.Context) ([]*entity.Voucher, error) {
	return r.list(func(v entity.Voucher) bool { return !v.IsLinked() }), nil
}

func (r *voucherRepo) ListAll(_ context.Context) ([]*entity.Voucher, error) {
	return r.list(func(entity.Voucher) bool { return true }), nil
}

func (r *voucherRepo) list(keep func(entity.Voucher) bool) []*entity.Voucher {
	var list []*entity.Voucher
	for _, v := range r.s.data.vouchers {
		if keep(v) {
			c := copyVoucher(v)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].VoucherNumber < list[j].VoucherNumber
	})
	return list
}

// ── Órdenes de compra ────────────────────────────────────────────────────────

type purchaseOrderRepo struct{ s *Store }

func (r *purchaseOrderRepo) Create(_ context.Context, o *entity.PurchaseOrder) error {
	d := r.s.data
	if _, ok := d.orders[o.ID]; ok {
		return fmt.Errorf("insert purchase order: %w", domain.ErrDuplicateNaturalKey)
	}
	for _, cur := range d.orders {
		if cur.ReferenceNumber == o.ReferenceNumber {
			return fmt.Errorf("insert purchase order: %w", domain.ErrDuplicateNaturalKey)
		}
	}
	d.orders[o.ID] = copyPurchaseOrder(*o)
	return nil
}

func (r *purchaseOrderRepo) GetByReference(_ context.Context, referenceNumber string) (*entity.PurchaseOrder, error) {
	for _, o := range r.s.data.orders {
		if o.ReferenceNumber == referenceNumber {
			out := copyPurchaseOrder(o)
			return &out, nil
		}
	}
	return nil, nil
}

func (r *purchaseOrderRepo) UpdateLink(_ context.Context, orderID, invoiceID string, providerID *string) (bool, error) {
	o, ok := r.s.data.orders[orderID]
	if !ok || o.IsLinked() {
		return false, nil
	}
	o.InvoiceID = &invoiceID
	if o.ProviderID == nil {
		o.ProviderID = copyString(providerID)
	}
	o.UpdatedAt = time.Now().UTC()
	r.s.data.orders[orderID] = o
	return true, nil
}

func (r *purchaseOrderRepo) UpdateAmountInWords(_ context.Context, orderID, amountInWords string) error {
	o, ok := r.s.data.orders[orderID]
	if !ok {
		return fmt.Errorf("update purchase order amount in words: %w", domain.ErrNotFound)
	}
	o.AmountInWords = amountInWords
	o.UpdatedAt = time.Now().UTC()
	r.s.data.orders[orderID] = o
	return nil
}

func (r *purchaseOrderRepo) ListUnlinked(_ context.Context) ([]*entity.PurchaseOrder, error) {
	return r.list(func(o entity.PurchaseOrder) bool { return !o.IsLinked() }), nil
}

func (r *purchaseOrderRepo) ListAll(_ context.Context) ([]*entity.PurchaseOrder, error) {
	return r.list(func(entity.PurchaseOrder) bool { return true }), nil
}

func (r *purchaseOrderRepo) list(keep func(entity.PurchaseOrder) bool) []*entity.PurchaseOrder {
	var list []*entity.PurchaseOrder
	for _, o := range r.s.data.orders {
		if keep(o) {
			c := copyPurchaseOrder(o)
			list = append(list, &c)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if !list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].CreatedAt.Before(list[j].CreatedAt)
		}
		return list[i].ReferenceNumber < list[j].ReferenceNumber
	})
	return list
}
