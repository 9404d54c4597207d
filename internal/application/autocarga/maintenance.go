package autocarga

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/normalize"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

// ImportResult resultado de importar un solo CFDI.
type ImportResult struct {
	InvoiceID       string
	ProviderID      string
	Created         bool
	ProviderCreated bool
}

// ImportCFDI importa un XML suelto. Respeta el candado de corrida única.
func (s *Service) ImportCFDI(ctx context.Context, path string) (*ImportResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	c, err := s.parser.Parse(ctx, path)
	if err != nil {
		return nil, &FileError{File: path, Stage: StageParse, Err: err}
	}
	out, inv, err := s.importCFDI(ctx, c)
	if err != nil {
		return nil, &FileError{File: path, Stage: StagePersist, Err: err}
	}
	s.log.Info().Str("file", path).Str("invoice", inv.ID).Bool("created", out.created).Msg("cfdi importado")
	return &ImportResult{
		InvoiceID:       inv.ID,
		ProviderID:      inv.ProviderID,
		Created:         out.created,
		ProviderCreated: out.provider.created,
	}, nil
}

// Relink vuelve a correr el matcher sobre vales y órdenes sin factura. Solo
// llena ligas vacías; nunca cambia una existente. Sin Since se usan las
// facturas de los últimos CandidateDays.
func (s *Service) Relink(ctx context.Context, scope repository.InvoiceScope) (*RunStats, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	if scope.Since == nil && s.settings.CandidateDays > 0 {
		since := time.Now().AddDate(0, 0, -s.settings.CandidateDays)
		scope.Since = &since
	}
	stats := NewRunStats()
	var (
		cands    []*entity.Invoice
		vouchers []*entity.Voucher
		orders   []*entity.PurchaseOrder
	)
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		var err error
		if cands, err = repos.Invoices.FindCandidates(ctx, scope); err != nil {
			return err
		}
		if vouchers, err = repos.Vouchers.ListUnlinked(ctx); err != nil {
			return err
		}
		orders, err = repos.PurchaseOrders.ListUnlinked(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	ws := newWorkingSet(cands)

	for _, v := range vouchers {
		out, err := s.relinkVoucher(ctx, v, ws)
		if err != nil {
			stats.Of(KindVoucher).Errored++
			s.log.Error().Err(err).Str("voucher", v.VoucherNumber).Msg("reintento de liga fallido")
			continue
		}
		out.apply(stats, KindVoucher)
	}
	for _, o := range orders {
		out, err := s.relinkPurchaseOrder(ctx, o, ws)
		if err != nil {
			stats.Of(KindPurchaseOrder).Errored++
			s.log.Error().Err(err).Str("order", o.ReferenceNumber).Msg("reintento de liga fallido")
			continue
		}
		out.apply(stats, KindPurchaseOrder)
	}

	s.log.Info().
		Int("vouchers_linked", stats.Of(KindVoucher).Linked).
		Int("orders_linked", stats.Of(KindPurchaseOrder).Linked).
		Msg("reintento de ligas terminado")
	return stats, nil
}

func (s *Service) relinkVoucher(ctx context.Context, v *entity.Voucher, ws *workingSet) (outcome, error) {
	var out outcome
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		out = outcome{}
		providerID := v.ProviderID
		if providerID == nil {
			p, err := s.resolveProvider(ctx, repos, matching.ProviderQuery{Code: v.ProviderCode, Name: v.ProviderName}, &out)
			if err != nil {
				return err
			}
			if p != nil {
				providerID = &p.ID
			}
		}
		inv, err := s.matchVoucherInvoice(ctx, repos, v, providerID, ws, &out)
		if err != nil {
			return err
		}
		if inv == nil {
			out.unmatched = true
			return nil
		}
		ok, err := repos.Vouchers.UpdateLink(ctx, v.ID, inv.ID, linkProvider(providerID, inv))
		if err != nil {
			return err
		}
		out.linked = ok
		return nil
	})
	return out, err
}

func (s *Service) relinkPurchaseOrder(ctx context.Context, o *entity.PurchaseOrder, ws *workingSet) (outcome, error) {
	var out outcome
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		out = outcome{}
		var providerID string
		if o.ProviderID != nil {
			providerID = *o.ProviderID
		} else {
			p, err := s.resolveProvider(ctx, repos, matching.ProviderQuery{Code: o.ProviderAccountCode, Name: o.ProviderName}, &out)
			if err != nil {
				return err
			}
			if p != nil {
				providerID = p.ID
			}
		}
		if providerID == "" || !o.Amount.GreaterThan(decimal.Zero) {
			out.unmatched = true
			return nil
		}
		m := s.invoices.MatchByAmount(providerID, o.Amount, ws.ofProvider(providerID), s.settings.AmountTolerance)
		if !m.Found() {
			out.unmatched = true
			return nil
		}
		if m.Ambiguous {
			out.ambiguous++
		}
		ok, err := repos.PurchaseOrders.UpdateLink(ctx, o.ID, m.Invoice.ID, &providerID)
		if err != nil {
			return err
		}
		out.linked = ok
		return nil
	})
	return out, err
}

// RepairAmountWords reaplica la separación de palabras al importe con letra
// guardado. Solo persiste cuando el texto corregido tiene más tokens.
func (s *Service) RepairAmountWords(ctx context.Context) (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		return 0, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	updated := 0
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		updated = 0
		vouchers, err := repos.Vouchers.ListAll(ctx)
		if err != nil {
			return err
		}
		for _, v := range vouchers {
			fixed := normalize.InsertSpacesIntoAmountWords(v.AmountText)
			if !normalize.AmountWordsImproved(v.AmountText, fixed) {
				continue
			}
			if err := repos.Vouchers.UpdateAmountText(ctx, v.ID, fixed); err != nil {
				return err
			}
			updated++
		}

		orders, err := repos.PurchaseOrders.ListAll(ctx)
		if err != nil {
			return err
		}
		for _, o := range orders {
			fixed := normalize.InsertSpacesIntoAmountWords(o.AmountInWords)
			if !normalize.AmountWordsImproved(o.AmountInWords, fixed) {
				continue
			}
			if err := repos.PurchaseOrders.UpdateAmountInWords(ctx, o.ID, fixed); err != nil {
				return err
			}
			updated++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	s.log.Info().Int("updated", updated).Msg("importes con letra corregidos")
	return updated, nil
}
