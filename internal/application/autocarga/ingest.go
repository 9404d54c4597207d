package autocarga

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/normalize"
)

// outcome lo que pasó con un registro. Se aplica a los contadores solo si la
// transacción hizo commit.
type outcome struct {
	created   bool
	duplicate bool
	linked    bool
	unmatched bool

	provider  providerOutcome
	ambiguous int
}

type providerOutcome struct {
	created    bool
	existing   bool
	resolved   bool
	unresolved bool
	backfilled bool
	conflict   bool
}

func (o outcome) apply(st *RunStats, kind Kind) {
	c := st.Of(kind)
	switch {
	case o.created:
		c.Created++
	case o.duplicate:
		c.SkippedDuplicate++
	}
	if o.linked {
		c.Linked++
	}
	if o.unmatched {
		c.Unmatched++
	}

	pc := st.Of(KindProvider)
	switch {
	case o.provider.created:
		pc.Created++
	case o.provider.existing:
		pc.SkippedDuplicate++
	}
	if o.provider.resolved {
		pc.Linked++
	}
	if o.provider.unresolved {
		pc.Unmatched++
	}
	if o.provider.backfilled {
		st.CodesBackfilled++
	}
	if o.provider.conflict {
		st.CodeConflicts++
	}
	st.Ambiguous += o.ambiguous
}

// workingSet facturas candidatas de la corrida, en el orden del llamador.
type workingSet struct {
	invoices []*entity.Invoice
}

func newWorkingSet(list []*entity.Invoice) *workingSet {
	return &workingSet{invoices: list}
}

// ofProvider conserva el orden original.
func (w *workingSet) ofProvider(providerID string) []*entity.Invoice {
	var out []*entity.Invoice
	for _, inv := range w.invoices {
		if inv.ProviderID == providerID {
			out = append(out, inv)
		}
	}
	return out
}

// ── Normalización ────────────────────────────────────────────────────────────

func voucherFromDocument(doc *entity.ExtractedDocument) (*entity.Voucher, error) {
	raw, _ := doc.Field(entity.FieldVoucherNumber)
	number := normalize.CleanText(raw)
	if number == "" {
		return nil, fmt.Errorf("%w: vale sin número", domain.ErrMalformedDocument)
	}
	v := &entity.Voucher{
		VoucherNumber: number,
		SourceFile:    doc.Path,
	}
	if raw, ok := doc.Field(entity.FieldVoucherType); ok {
		v.Type = normalize.CorrectVoucherTypeCode(raw)
	}
	if raw, ok := doc.Field(entity.FieldSourceDocument); ok {
		v.SourceDocumentNumber = normalize.CleanText(raw)
	}
	if raw, ok := doc.Field(entity.FieldProviderName); ok {
		v.ProviderName = normalize.CleanText(raw)
	}
	if raw, ok := doc.Field(entity.FieldProviderCode); ok {
		v.ProviderCode = normalize.CleanText(raw)
	}
	if raw, ok := doc.Field(entity.FieldDepartment); ok {
		if n, ok := normalize.ExtractInteger(raw); ok {
			v.DepartmentCode = &n
		}
	}
	if raw, ok := doc.Field(entity.FieldAmountText); ok {
		v.AmountText = normalize.InsertSpacesIntoAmountWords(normalize.CleanText(raw))
	}
	if raw, ok := doc.Field(entity.FieldAmount); ok {
		if amt, ok := normalize.ParseAmount(raw); ok {
			v.Amount = amt
		}
	}
	v.IssueDate = parseOptionalDate(doc, entity.FieldIssueDate)
	return v, nil
}

func purchaseOrderFromDocument(doc *entity.ExtractedDocument) (*entity.PurchaseOrder, error) {
	raw, _ := doc.Field(entity.FieldReferenceNumber)
	ref := normalize.CleanText(raw)
	if ref == "" {
		return nil, fmt.Errorf("%w: orden sin referencia", domain.ErrMalformedDocument)
	}
	o := &entity.PurchaseOrder{
		ReferenceNumber: ref,
		SourceFile:      doc.Path,
	}
	if raw, ok := doc.Field(entity.FieldProviderAccountCode); ok {
		o.ProviderAccountCode = normalize.CleanText(raw)
	}
	if raw, ok := doc.Field(entity.FieldProviderName); ok {
		o.ProviderName = normalize.CleanText(raw)
	}
	if raw, ok := doc.Field(entity.FieldAmount); ok {
		if amt, ok := normalize.ParseAmount(raw); ok {
			o.Amount = amt
		}
	}
	if raw, ok := doc.Field(entity.FieldAmountInWords); ok {
		o.AmountInWords = normalize.InsertSpacesIntoAmountWords(normalize.CleanText(raw))
	}
	if raw, ok := doc.Field(entity.FieldLedgerAccount); ok {
		if n, ok := normalize.ExtractInteger(raw); ok {
			o.LedgerAccount = &n
		}
	}
	o.IssueDate = parseOptionalDate(doc, entity.FieldIssueDate)
	return o, nil
}

// parseOptionalDate devuelve nil si la fecha falta o no es DD/MM/YYYY.
func parseOptionalDate(doc *entity.ExtractedDocument, label entity.FieldLabel) *time.Time {
	raw, ok := doc.Field(label)
	if !ok {
		return nil
	}
	d, err := normalize.ParseDate(normalize.CleanText(raw))
	if err != nil {
		return nil
	}
	return &d
}

// ── Proveedor ────────────────────────────────────────────────────────────────

// resolveProvider busca primero por código externo en la base (nivel 1); solo
// si no hay proveedor con ese código carga el catálogo para los niveles por
// nombre. Aplica el código externo cuando el proveedor no tenía uno.
func (s *Service) resolveProvider(ctx context.Context, repos Repositories, q matching.ProviderQuery, out *outcome) (*entity.Provider, error) {
	q.Code = strings.TrimSpace(q.Code)
	if q.Code == "" && q.Name == "" {
		return nil, nil
	}
	var cands []*entity.Provider
	if q.Code != "" {
		byCode, err := repos.Providers.GetByExternalCode(ctx, q.Code)
		if err != nil {
			return nil, err
		}
		if byCode != nil {
			cands = []*entity.Provider{byCode}
		}
	}
	if cands == nil {
		if q.Name == "" {
			out.provider.unresolved = true
			return nil, nil
		}
		all, err := repos.Providers.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		cands = all
	}
	m := s.providers.Match(q, cands)
	if !m.Found() {
		out.provider.unresolved = true
		return nil, nil
	}
	out.provider.resolved = true
	if m.Ambiguous {
		out.ambiguous++
	}
	if m.CodeConflict {
		out.provider.conflict = true
	}
	p := m.Provider
	if m.CodeBackfill {
		p.ExternalCode = q.Code
		p.UpdatedAt = time.Now().UTC()
		if err := repos.Providers.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("asignar código %s a proveedor %s: %w", q.Code, p.ID, err)
		}
		out.provider.backfilled = true
		s.log.Info().Str("provider", p.ID).Str("code", q.Code).Msg("código externo asignado")
	}
	return p, nil
}

// ── Vales ────────────────────────────────────────────────────────────────────

// ingestVoucher inserta el vale o, si ya existe sin factura, reintenta la liga.
func (s *Service) ingestVoucher(ctx context.Context, v *entity.Voucher, ws *workingSet) (outcome, error) {
	var out outcome
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		out = outcome{}
		existing, err := repos.Vouchers.GetByNumber(ctx, v.VoucherNumber)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsLinked() {
			out.duplicate = true
			return nil
		}
		s.setState(StateMatching)
		p, err := s.resolveProvider(ctx, repos, matching.ProviderQuery{Code: v.ProviderCode, Name: v.ProviderName}, &out)
		if err != nil {
			return err
		}
		var providerID *string
		if p != nil {
			providerID = &p.ID
		}

		if existing != nil {
			out.duplicate = true
			inv, err := s.matchVoucherInvoice(ctx, repos, existing, providerID, ws, &out)
			if err != nil || inv == nil {
				return err
			}
			s.setState(StatePersisting)
			ok, err := repos.Vouchers.UpdateLink(ctx, existing.ID, inv.ID, linkProvider(providerID, inv))
			if err != nil {
				return err
			}
			out.linked = ok
			return nil
		}

		inv, err := s.matchVoucherInvoice(ctx, repos, v, providerID, ws, &out)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		v.ID = uuid.New().String()
		v.ProviderID = providerID
		v.CreatedAt, v.UpdatedAt = now, now
		if inv != nil {
			v.InvoiceID = &inv.ID
			v.ProviderID = linkProvider(providerID, inv)
			out.linked = true
		} else {
			out.unmatched = true
		}
		s.setState(StatePersisting)
		if err := repos.Vouchers.Create(ctx, v); err != nil {
			return err
		}
		out.created = true
		return nil
	})
	return out, err
}

// matchVoucherInvoice busca la factura del vale: primero entre las del
// proveedor resuelto, después en todo el conjunto. Una factura que ya tiene
// otro vale no se vuelve a ligar.
func (s *Service) matchVoucherInvoice(ctx context.Context, repos Repositories, v *entity.Voucher, providerID *string, ws *workingSet, out *outcome) (*entity.Invoice, error) {
	if v.SourceDocumentNumber == "" {
		return nil, nil
	}
	var m matching.InvoiceMatch
	if providerID != nil {
		m = s.invoices.Match(v.SourceDocumentNumber, ws.ofProvider(*providerID))
	}
	if !m.Found() {
		m = s.invoices.Match(v.SourceDocumentNumber, ws.invoices)
	}
	if !m.Found() {
		return nil, nil
	}
	if m.Ambiguous {
		out.ambiguous++
	}
	other, err := repos.Vouchers.GetByInvoiceID(ctx, m.Invoice.ID)
	if err != nil {
		return nil, err
	}
	if other != nil && other.ID != v.ID {
		s.log.Warn().
			Str("voucher", v.VoucherNumber).
			Str("invoice", m.Invoice.ID).
			Str("linked_to", other.VoucherNumber).
			Msg("factura ya ligada a otro vale")
		return nil, nil
	}
	s.log.Debug().
		Str("voucher", v.VoucherNumber).
		Str("invoice", m.Invoice.ID).
		Str("rule", m.Rule.String()).
		Msg("vale ligado")
	return m.Invoice, nil
}

// linkProvider si el proveedor no se resolvió se toma el de la factura.
func linkProvider(providerID *string, inv *entity.Invoice) *string {
	if providerID != nil {
		return providerID
	}
	id := inv.ProviderID
	return &id
}

// ── Órdenes de compra ────────────────────────────────────────────────────────

// ingestPurchaseOrder inserta la orden ligándola por proveedor + importe.
func (s *Service) ingestPurchaseOrder(ctx context.Context, o *entity.PurchaseOrder, ws *workingSet) (outcome, error) {
	var out outcome
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		out = outcome{}
		existing, err := repos.PurchaseOrders.GetByReference(ctx, o.ReferenceNumber)
		if err != nil {
			return err
		}
		if existing != nil && existing.IsLinked() {
			out.duplicate = true
			return nil
		}
		s.setState(StateMatching)
		p, err := s.resolveProvider(ctx, repos, matching.ProviderQuery{Code: o.ProviderAccountCode, Name: o.ProviderName}, &out)
		if err != nil {
			return err
		}

		target := o
		if existing != nil {
			out.duplicate = true
			target = existing
		}

		var inv *entity.Invoice
		if p != nil && target.Amount.GreaterThan(decimal.Zero) {
			m := s.invoices.MatchByAmount(p.ID, target.Amount, ws.ofProvider(p.ID), s.settings.AmountTolerance)
			if m.Found() {
				inv = m.Invoice
				if m.Ambiguous {
					out.ambiguous++
				}
			}
		}

		s.setState(StatePersisting)
		if existing != nil {
			if inv == nil {
				return nil
			}
			ok, err := repos.PurchaseOrders.UpdateLink(ctx, existing.ID, inv.ID, &p.ID)
			if err != nil {
				return err
			}
			out.linked = ok
			return nil
		}

		now := time.Now().UTC()
		o.ID = uuid.New().String()
		o.CreatedAt, o.UpdatedAt = now, now
		if p != nil {
			o.ProviderID = &p.ID
		}
		if inv != nil {
			o.InvoiceID = &inv.ID
			out.linked = true
		} else {
			out.unmatched = true
		}
		if err := repos.PurchaseOrders.Create(ctx, o); err != nil {
			return err
		}
		out.created = true
		return nil
	})
	return out, err
}

// ── CFDI ─────────────────────────────────────────────────────────────────────

// importCFDI da de alta proveedor (por RFC o nombre) y factura con conceptos
// en una sola transacción. Una llave natural existente es duplicado.
func (s *Service) importCFDI(ctx context.Context, c *entity.CFDIInvoice) (outcome, *entity.Invoice, error) {
	var (
		out outcome
		inv *entity.Invoice
	)
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		out, inv = outcome{}, nil
		s.setState(StateMatching)
		p, err := s.upsertIssuer(ctx, repos, c.Issuer, &out)
		if err != nil {
			return err
		}

		existing, err := repos.Invoices.GetByNaturalKey(ctx, p.ID, c.Series, c.Folio)
		if err != nil {
			return err
		}
		if existing != nil {
			out.duplicate = true
			inv = existing
			return nil
		}

		s.setState(StatePersisting)
		now := time.Now().UTC()
		inv = &entity.Invoice{
			ID:          uuid.New().String(),
			ProviderID:  p.ID,
			Series:      c.Series,
			Number:      c.Folio,
			IssueDate:   c.IssueDate,
			Subtotal:    c.Subtotal,
			Tax:         c.TransferredTax,
			WithheldVAT: c.WithheldVAT,
			WithheldISR: c.WithheldISR,
			Total:       c.Total,
			FiscalUUID:  c.FiscalUUID,
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		if err := repos.Invoices.Create(ctx, inv); err != nil {
			return err
		}
		for _, cc := range c.Concepts {
			concept := &entity.Concept{
				ID:          uuid.New().String(),
				InvoiceID:   inv.ID,
				Quantity:    cc.Quantity,
				Description: cc.Description,
				UnitPrice:   cc.UnitPrice,
				Amount:      cc.Amount,
			}
			if err := repos.Invoices.CreateConcept(ctx, concept); err != nil {
				return err
			}
		}
		out.created = true
		return nil
	})
	if err != nil {
		return outcome{}, nil, err
	}
	return out, inv, nil
}

// upsertIssuer busca al emisor por RFC y luego por nombre; un proveedor
// encontrado por nombre sin RFC lo recibe. Si no hay coincidencia se crea.
// Nunca hay dos proveedores con el mismo RFC.
func (s *Service) upsertIssuer(ctx context.Context, repos Repositories, issuer entity.CFDIParty, out *outcome) (*entity.Provider, error) {
	if issuer.RFC == "" {
		return nil, fmt.Errorf("%w: emisor sin RFC", domain.ErrMalformedDocument)
	}
	p, err := repos.Providers.GetByTaxID(ctx, issuer.RFC)
	if err != nil {
		return nil, err
	}
	if p != nil {
		out.provider.existing = true
		return p, nil
	}

	if issuer.Name != "" {
		all, err := repos.Providers.ListAll(ctx)
		if err != nil {
			return nil, err
		}
		m := s.providers.Match(matching.ProviderQuery{Name: issuer.Name}, all)
		if m.Found() && m.Provider.TaxID == "" {
			if m.Ambiguous {
				out.ambiguous++
			}
			p = m.Provider
			p.TaxID = issuer.RFC
			p.UpdatedAt = time.Now().UTC()
			if err := repos.Providers.Update(ctx, p); err != nil {
				return nil, err
			}
			out.provider.existing = true
			s.log.Info().Str("provider", p.ID).Str("rfc", issuer.RFC).Msg("RFC asignado a proveedor existente")
			return p, nil
		}
	}

	name := issuer.Name
	if name == "" {
		name = issuer.RFC
	}
	now := time.Now().UTC()
	p = &entity.Provider{
		ID:        uuid.New().String(),
		Name:      name,
		TaxID:     issuer.RFC,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Providers.Create(ctx, p); err != nil {
		return nil, err
	}
	out.provider.created = true
	return p, nil
}
