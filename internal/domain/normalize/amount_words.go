package normalize

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
)

// amountWordRules reglas ordenadas que separan los bloques numéricos del
// texto: "PESOS00/100MN" → "PESOS 00/100 MN". Solo insertan espacios donde no
// los hay, por lo que aplicarlas de nuevo no cambia nada.
var amountWordRules = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`(\d)(\pL)`), "$1 $2"},
	{regexp.MustCompile(`(\pL)(\d)`), "$1 $2"},
	{regexp.MustCompile(`(\))(\pL|\d)`), "$1 $2"},
	{regexp.MustCompile(`(\pL|\d)(\()`), "$1 $2"},
}

// amountMorphemes palabras con las que el sistema origen arma el importe con
// letra. Se prueban de la más larga a la más corta.
var amountMorphemes = sortByLengthDesc([]string{
	// unidades y especiales
	"UN", "UNO", "UNA", "DOS", "TRES", "CUATRO", "CINCO", "SEIS", "SIETE", "OCHO", "NUEVE",
	"DIEZ", "ONCE", "DOCE", "TRECE", "CATORCE", "QUINCE",
	"DIECISEIS", "DIECISÉIS", "DIECISIETE", "DIECIOCHO", "DIECINUEVE",
	"VEINTE", "VEINTIUN", "VEINTIUNO", "VEINTIUNA", "VEINTIDOS", "VEINTIDÓS", "VEINTITRES", "VEINTITRÉS",
	"VEINTICUATRO", "VEINTICINCO", "VEINTISEIS", "VEINTISÉIS", "VEINTISIETE", "VEINTIOCHO", "VEINTINUEVE",
	// decenas
	"TREINTA", "CUARENTA", "CINCUENTA", "SESENTA", "SETENTA", "OCHENTA", "NOVENTA",
	// centenas
	"CIEN", "CIENTO", "DOSCIENTOS", "TRESCIENTOS", "CUATROCIENTOS", "QUINIENTOS",
	"SEISCIENTOS", "SETECIENTOS", "OCHOCIENTOS", "NOVECIENTOS",
	"DOSCIENTAS", "TRESCIENTAS", "CUATROCIENTAS", "QUINIENTAS",
	"SEISCIENTAS", "SETECIENTAS", "OCHOCIENTAS", "NOVECIENTAS",
	// órdenes, moneda y conectores
	"MIL", "MILLON", "MILLÓN", "MILLONES",
	"PESO", "PESOS", "MN", "Y", "DE",
})

func sortByLengthDesc(words []string) []string {
	out := append([]string(nil), words...)
	sort.SliceStable(out, func(i, j int) bool { return len(out[i]) > len(out[j]) })
	return out
}

// InsertSpacesIntoAmountWords repara el importe con letra que el sistema origen
// genera sin separadores: "SEISMILTRESCIENTOSOCHENTAPESOS00/100MN" →
// "SEIS MIL TRESCIENTOS OCHENTA PESOS 00/100 MN".
//
// Un bloque alfabético solo se parte si se puede descomponer completo en
// palabras conocidas; si no, se deja intacto. La función es idempotente y
// nunca reduce el número de tokens.
func InsertSpacesIntoAmountWords(raw string) string {
	s := raw
	for _, r := range amountWordRules {
		s = r.re.ReplaceAllString(s, r.repl)
	}
	tokens := strings.Fields(s)
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, splitToken(tok)...)
	}
	return strings.Join(out, " ")
}

// TokenCount número de tokens separados por espacios.
func TokenCount(s string) int {
	return len(strings.Fields(s))
}

// AmountWordsImproved informa si corrected tiene más tokens que original; es
// la única verificación automática antes de persistir la corrección.
func AmountWordsImproved(original, corrected string) bool {
	return TokenCount(corrected) > TokenCount(original)
}

// splitToken separa puntuación inicial/final, segmenta el núcleo alfabético y
// reconstruye los pedazos.
func splitToken(tok string) []string {
	start := strings.IndexFunc(tok, unicode.IsLetter)
	if start < 0 {
		return []string{tok}
	}
	end := strings.LastIndexFunc(tok, unicode.IsLetter)
	_, size := firstRune(tok[end:])
	end += size

	lead, core, trail := tok[:start], tok[start:end], tok[end:]
	for _, r := range core {
		if !unicode.IsLetter(r) {
			return []string{tok}
		}
	}
	upper := strings.ToUpper(core)
	if len(upper) != len(core) {
		return []string{tok}
	}
	parts := segment(upper)
	if len(parts) <= 1 {
		return []string{tok}
	}

	pieces := make([]string, 0, len(parts))
	pos := 0
	for _, p := range parts {
		pieces = append(pieces, core[pos:pos+len(p)])
		pos += len(p)
	}
	pieces[0] = lead + pieces[0]
	pieces[len(pieces)-1] += trail
	return pieces
}

func firstRune(s string) (rune, int) {
	for _, r := range s {
		return r, len(string(r))
	}
	return 0, 0
}

// segment descompone s en palabras de amountMorphemes probando primero las más
// largas, con retroceso. Devuelve nil si no hay descomposición completa.
func segment(s string) []string {
	failed := make(map[int]bool)
	var walk func(pos int) []string
	walk = func(pos int) []string {
		if pos == len(s) {
			return []string{}
		}
		if failed[pos] {
			return nil
		}
		for _, w := range amountMorphemes {
			if !strings.HasPrefix(s[pos:], w) {
				continue
			}
			if rest := walk(pos + len(w)); rest != nil {
				return append([]string{w}, rest...)
			}
		}
		failed[pos] = true
		return nil
	}
	return walk(0)
}
