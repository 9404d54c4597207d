// Package memory implementa los repositorios de autocarga en memoria, con las
// mismas restricciones de unicidad que el esquema PostgreSQL. Lo usan las
// pruebas y la corrida en seco del CLI.
package memory

import (
	"context"
	"sync"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

var _ autocarga.TxRunner = (*Store)(nil)

// Store base de datos en memoria. RunInTx serializa las transacciones y
// restaura el estado previo si fn devuelve error.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore crea un store vacío.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// RunInTx ejecuta fn con repos sobre el store; error → rollback.
func (s *Store) RunInTx(ctx context.Context, fn func(repos autocarga.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(s.repos()); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *Store) repos() autocarga.Repositories {
	return autocarga.Repositories{
		Providers:      &providerRepo{s: s},
		Invoices:       &invoiceRepo{s: s},
		Vouchers:       &voucherRepo{s: s},
		PurchaseOrders: &purchaseOrderRepo{s: s},
	}
}

type dataset struct {
	providers map[string]entity.Provider
	invoices  map[string]entity.Invoice
	concepts  map[string][]entity.Concept // por invoice_id, en orden de alta
	vouchers  map[string]entity.Voucher
	orders    map[string]entity.PurchaseOrder
}

func newDataset() *dataset {
	return &dataset{
		providers: make(map[string]entity.Provider),
		invoices:  make(map[string]entity.Invoice),
		concepts:  make(map[string][]entity.Concept),
		vouchers:  make(map[string]entity.Voucher),
		orders:    make(map[string]entity.PurchaseOrder),
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for k, v := range d.providers {
		c.providers[k] = copyProvider(v)
	}
	for k, v := range d.invoices {
		c.invoices[k] = copyInvoice(v)
	}
	for k, v := range d.concepts {
		c.concepts[k] = append([]entity.Concept(nil), v...)
	}
	for k, v := range d.vouchers {
		c.vouchers[k] = copyVoucher(v)
	}
	for k, v := range d.orders {
		c.orders[k] = copyPurchaseOrder(v)
	}
	return c
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func copyProvider(p entity.Provider) entity.Provider {
	p.LedgerAccount = copyInt(p.LedgerAccount)
	return p
}

func copyInvoice(i entity.Invoice) entity.Invoice {
	i.LedgerAccount = copyInt(i.LedgerAccount)
	return i
}

func copyVoucher(v entity.Voucher) entity.Voucher {
	v.ProviderID = copyString(v.ProviderID)
	v.DepartmentCode = copyInt(v.DepartmentCode)
	v.InvoiceID = copyString(v.InvoiceID)
	if v.IssueDate != nil {
		d := *v.IssueDate
		v.IssueDate = &d
	}
	return v
}

func copyPurchaseOrder(o entity.PurchaseOrder) entity.PurchaseOrder {
	o.ProviderID = copyString(o.ProviderID)
	o.InvoiceID = copyString(o.InvoiceID)
	o.LedgerAccount = copyInt(o.LedgerAccount)
	if o.IssueDate != nil {
		d := *o.IssueDate
		o.IssueDate = &d
	}
	return o
}
