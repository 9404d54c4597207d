package matching

import (
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// InvoiceRule regla que produjo la coincidencia de factura.
type InvoiceRule int

const (
	RuleNone InvoiceRule = iota
	RuleSplit
	RuleFullKey
	RuleBareNumber
	RuleSuffix
	RuleContainment
	RuleAmount
)

func (r InvoiceRule) String() string {
	switch r {
	case RuleSplit:
		return "split"
	case RuleFullKey:
		return "full_key"
	case RuleBareNumber:
		return "bare_number"
	case RuleSuffix:
		return "suffix"
	case RuleContainment:
		return "containment"
	case RuleAmount:
		return "amount"
	default:
		return "none"
	}
}

// DocumentKey serie + folio de una factura.
type DocumentKey struct {
	Series string
	Number string
}

// Normalized concatenación normalizada serie+folio.
func (k DocumentKey) Normalized() string {
	return NormalizeDocumentKey(k.Series + k.Number)
}

var splitKey = regexp.MustCompile(`^([^\s-]+)[\s-]+([^\s-]+)$`)

// ParseDocumentKey separa "SERIE-FOLIO" o "SERIE FOLIO". Sin separador
// devuelve false.
func ParseDocumentKey(raw string) (DocumentKey, bool) {
	m := splitKey.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return DocumentKey{}, false
	}
	return DocumentKey{Series: strings.ToUpper(m[1]), Number: strings.ToUpper(m[2])}, true
}

var keyCleaner = strings.NewReplacer(" ", "", "-", "", "\t", "", "\u00a0", "")

// NormalizeDocumentKey mayúsculas sin espacios ni guiones.
func NormalizeDocumentKey(s string) string {
	return keyCleaner.Replace(strings.ToUpper(strings.TrimSpace(s)))
}

// InvoiceMatch resultado de la resolución de factura.
type InvoiceMatch struct {
	Invoice   *entity.Invoice
	Rule      InvoiceRule
	Ambiguous bool
}

// Found informa si hubo coincidencia.
func (m InvoiceMatch) Found() bool { return m.Invoice != nil }

// InvoiceMatcher resuelve el "documento origen" de un vale contra un conjunto
// de facturas candidatas preseleccionado por el caller.
type InvoiceMatcher struct {
	minPartial int
	log        zerolog.Logger
}

// NewInvoiceMatcher construye el matcher. minPartial es la longitud mínima
// del lado corto en las reglas de sufijo y contención (mínimo 3).
func NewInvoiceMatcher(minPartial int, log zerolog.Logger) *InvoiceMatcher {
	if minPartial < 3 {
		minPartial = 3
	}
	return &InvoiceMatcher{minPartial: minPartial, log: log}
}

// Match aplica las reglas en orden; gana la primera con resultado. Los
// empates dentro de una regla se resuelven por el primer candidato recibido.
func (m *InvoiceMatcher) Match(sourceDocument string, candidates []*entity.Invoice) InvoiceMatch {
	target := NormalizeDocumentKey(sourceDocument)
	if target == "" || len(candidates) == 0 {
		return InvoiceMatch{}
	}

	if key, ok := ParseDocumentKey(sourceDocument); ok {
		series, number := NormalizeDocumentKey(key.Series), NormalizeDocumentKey(key.Number)
		if hit := m.pick(sourceDocument, RuleSplit, candidates, func(inv *entity.Invoice) bool {
			return NormalizeDocumentKey(inv.Series) == series && NormalizeDocumentKey(inv.Number) == number
		}); hit.Found() {
			return hit
		}
	}

	rules := []struct {
		rule InvoiceRule
		keep func(inv *entity.Invoice) bool
	}{
		{RuleFullKey, func(inv *entity.Invoice) bool {
			return candidateKey(inv) == target
		}},
		{RuleBareNumber, func(inv *entity.Invoice) bool {
			return NormalizeDocumentKey(inv.Number) == target
		}},
		{RuleSuffix, func(inv *entity.Invoice) bool {
			full := candidateKey(inv)
			return m.longEnough(target, full) &&
				(strings.HasSuffix(full, target) || strings.HasSuffix(target, full))
		}},
		{RuleContainment, func(inv *entity.Invoice) bool {
			full := candidateKey(inv)
			return len(target) >= m.minPartial && m.longEnough(target, full) &&
				(strings.Contains(full, target) || strings.Contains(target, full))
		}},
	}
	for _, r := range rules {
		if hit := m.pick(sourceDocument, r.rule, candidates, r.keep); hit.Found() {
			return hit
		}
	}
	return InvoiceMatch{}
}

// MatchByAmount respaldo para órdenes de compra sin llave textual: facturas del
// proveedor con |total-importe|/importe ≤ tolerance.
func (m *InvoiceMatcher) MatchByAmount(providerID string, amount decimal.Decimal, candidates []*entity.Invoice, tolerance float64) InvoiceMatch {
	if providerID == "" || !amount.IsPositive() || tolerance < 0 {
		return InvoiceMatch{}
	}
	tol := decimal.NewFromFloat(tolerance)
	return m.pick(amount.String(), RuleAmount, candidates, func(inv *entity.Invoice) bool {
		if inv.ProviderID != providerID {
			return false
		}
		return inv.Total.Sub(amount).Abs().Div(amount).LessThanOrEqual(tol)
	})
}

func (m *InvoiceMatcher) pick(source string, rule InvoiceRule, cands []*entity.Invoice, keep func(*entity.Invoice) bool) InvoiceMatch {
	var first *entity.Invoice
	n := 0
	for _, inv := range cands {
		if inv == nil || !keep(inv) {
			continue
		}
		if first == nil {
			first = inv
		}
		n++
	}
	if first == nil {
		return InvoiceMatch{}
	}
	if n > 1 {
		m.log.Warn().
			Err(domain.ErrAmbiguousMatch).
			Str("source", source).
			Str("rule", rule.String()).
			Int("candidates", n).
			Str("invoice_id", first.ID).
			Msg("coincidencia de factura ambigua, se toma la primera")
	}
	return InvoiceMatch{Invoice: first, Rule: rule, Ambiguous: n > 1}
}

func (m *InvoiceMatcher) longEnough(a, b string) bool {
	return len(a) >= m.minPartial && len(b) >= m.minPartial
}

func candidateKey(inv *entity.Invoice) string {
	return NormalizeDocumentKey(inv.Series + inv.Number)
}
