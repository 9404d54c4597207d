// Package matching resuelve identificadores extraídos (nombre, código, número
// de documento, importe) contra proveedores y facturas existentes.
//
// Política: preferir una no-coincidencia a una coincidencia falsa. Ningún
// nivel fuerza un resultado por debajo de su umbral; lo que no se resuelve
// queda sin vincular para revisión manual.
package matching

import (
	"sort"
	"strings"
	"unicode"

	"github.com/rs/zerolog"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// ProviderTier nivel de la estrategia que produjo la coincidencia.
type ProviderTier int

const (
	TierNone ProviderTier = iota
	TierCode
	TierExactName
	TierNormalizedName
	TierSuffix
	TierContainment
)

func (t ProviderTier) String() string {
	switch t {
	case TierCode:
		return "code"
	case TierExactName:
		return "exact_name"
	case TierNormalizedName:
		return "normalized_name"
	case TierSuffix:
		return "suffix"
	case TierContainment:
		return "containment"
	default:
		return "none"
	}
}

// DefaultCorporateSuffixes sufijos societarios ya normalizados (sin espacios ni puntos).
var DefaultCorporateSuffixes = []string{"SADECV", "SAPIDECV", "SDERLDECV", "SCDERLDECV", "SDERL"}

// ProviderQuery datos del proveedor tal como vienen del documento.
type ProviderQuery struct {
	Code string
	Name string
}

// ProviderMatch resultado de la resolución de proveedor.
type ProviderMatch struct {
	Provider  *entity.Provider
	Tier      ProviderTier
	Ambiguous bool
	// CodeBackfill: se resolvió por nombre, el proveedor no tiene código y la
	// consulta sí trae uno; el caller puede completarlo.
	CodeBackfill bool
	// CodeConflict: se resolvió por nombre pero el proveedor ya tiene otro
	// código. Nunca se sobrescribe.
	CodeConflict bool
}

// Found informa si hubo coincidencia.
func (m ProviderMatch) Found() bool { return m.Provider != nil }

// ProviderMatcherConfig parámetros de la resolución de proveedor.
type ProviderMatcherConfig struct {
	// NameRatio umbral estricto de min(len)/max(len) para el nivel de contención.
	NameRatio float64
	Suffixes  []string
}

// ProviderMatcher resuelve proveedores por niveles estrictos; gana el primer nivel con resultado.
type ProviderMatcher struct {
	ratio    float64
	suffixes []string
	log      zerolog.Logger
}

// NewProviderMatcher construye el matcher. Valores no positivos de NameRatio usan 0.8.
func NewProviderMatcher(cfg ProviderMatcherConfig, log zerolog.Logger) *ProviderMatcher {
	ratio := cfg.NameRatio
	if ratio <= 0 || ratio >= 1 {
		ratio = 0.8
	}
	suffixes := cfg.Suffixes
	if len(suffixes) == 0 {
		suffixes = DefaultCorporateSuffixes
	}
	normalized := make([]string, 0, len(suffixes))
	for _, s := range suffixes {
		if n := NormalizeName(s); n != "" {
			normalized = append(normalized, n)
		}
	}
	sort.SliceStable(normalized, func(i, j int) bool { return len(normalized[i]) > len(normalized[j]) })
	return &ProviderMatcher{ratio: ratio, suffixes: normalized, log: log}
}

// Match recorre los niveles 1 a 5. Para los niveles 1 y 2 el empate se
// resuelve por el menor ID, así el resultado no depende del orden de los
// candidatos. En los niveles 3 a 5 gana el primero en el orden recibido.
func (m *ProviderMatcher) Match(q ProviderQuery, candidates []*entity.Provider) ProviderMatch {
	code := strings.TrimSpace(q.Code)
	name := upperName(q.Name)

	if code != "" {
		hits := filterProviders(candidates, func(p *entity.Provider) bool {
			return strings.TrimSpace(p.ExternalCode) == code
		})
		if len(hits) > 0 {
			return m.result(q, smallestID(hits), TierCode, len(hits) > 1)
		}
	}
	if name == "" {
		return ProviderMatch{}
	}

	hits := filterProviders(candidates, func(p *entity.Provider) bool {
		return upperName(p.Name) == name
	})
	if len(hits) > 0 {
		return m.result(q, smallestID(hits), TierExactName, len(hits) > 1)
	}

	target := NormalizeName(q.Name)
	if target == "" {
		return ProviderMatch{}
	}
	hits = filterProviders(candidates, func(p *entity.Provider) bool {
		return NormalizeName(p.Name) == target
	})
	if len(hits) > 0 {
		return m.result(q, hits[0], TierNormalizedName, len(hits) > 1)
	}

	bare := m.stripSuffix(target)
	hits = filterProviders(candidates, func(p *entity.Provider) bool {
		other := NormalizeName(p.Name)
		return other != "" && m.stripSuffix(other) == bare
	})
	if len(hits) > 0 {
		return m.result(q, hits[0], TierSuffix, len(hits) > 1)
	}

	hits = filterProviders(candidates, func(p *entity.Provider) bool {
		return m.contains(bare, m.stripSuffix(NormalizeName(p.Name)))
	})
	if len(hits) > 0 {
		return m.result(q, hits[0], TierContainment, len(hits) > 1)
	}
	return ProviderMatch{}
}

func (m *ProviderMatcher) result(q ProviderQuery, p *entity.Provider, tier ProviderTier, ambiguous bool) ProviderMatch {
	res := ProviderMatch{Provider: p, Tier: tier, Ambiguous: ambiguous}
	if ambiguous {
		m.log.Warn().
			Err(domain.ErrAmbiguousMatch).
			Str("provider_id", p.ID).
			Str("tier", tier.String()).
			Str("query_name", q.Name).
			Str("query_code", q.Code).
			Msg("coincidencia de proveedor ambigua, se toma la primera")
	}
	code := strings.TrimSpace(q.Code)
	if tier == TierCode || code == "" {
		return res
	}
	existing := strings.TrimSpace(p.ExternalCode)
	switch {
	case existing == "":
		res.CodeBackfill = true
	case existing != code:
		res.CodeConflict = true
		m.log.Warn().
			Str("provider_id", p.ID).
			Str("existing_code", existing).
			Str("incoming_code", code).
			Msg("código externo en conflicto, no se sobrescribe")
	}
	return res
}

func (m *ProviderMatcher) stripSuffix(s string) string {
	for _, suf := range m.suffixes {
		if len(s) > len(suf) && strings.HasSuffix(s, suf) {
			return strings.TrimSuffix(s, suf)
		}
	}
	return s
}

func (m *ProviderMatcher) contains(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	if !strings.Contains(a, b) && !strings.Contains(b, a) {
		return false
	}
	short, long := len(a), len(b)
	if short > long {
		short, long = long, short
	}
	return float64(short)/float64(long) > m.ratio
}

func filterProviders(cands []*entity.Provider, keep func(*entity.Provider) bool) []*entity.Provider {
	var out []*entity.Provider
	for _, p := range cands {
		if p != nil && keep(p) {
			out = append(out, p)
		}
	}
	return out
}

func smallestID(ps []*entity.Provider) *entity.Provider {
	best := ps[0]
	for _, p := range ps[1:] {
		if p.ID < best.ID {
			best = p
		}
	}
	return best
}

func upperName(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// boilerplateTokens palabras societarias que se eliminan al normalizar.
var boilerplateTokens = map[string]bool{
	"SOCIEDAD":        true,
	"ANONIMA":         true,
	"CAPITAL":         true,
	"VARIABLE":        true,
	"RESPONSABILIDAD": true,
	"LIMITADA":        true,
}

var namePunctuation = strings.NewReplacer(".", "", ",", "", "-", " ", "&", " ", "/", " ", "\\", " ")

// NormalizeName mayúsculas, sin acentos, sin puntuación, sin palabras
// societarias (ni el DE que las une) y sin espacios.
// "Comercial Pérez, Sociedad Anónima de Capital Variable" → "COMERCIALPEREZ".
func NormalizeName(raw string) string {
	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), raw)
	if err != nil {
		folded = raw
	}
	tokens := strings.Fields(namePunctuation.Replace(strings.ToUpper(folded)))

	var b strings.Builder
	for i, tok := range tokens {
		if boilerplateTokens[tok] {
			continue
		}
		if tok == "DE" && i+1 < len(tokens) && boilerplateTokens[tokens[i+1]] {
			continue
		}
		b.WriteString(tok)
	}
	return b.String()
}
