// Package normalize limpia los valores crudos que entrega el extractor de PDF:
// enteros embebidos en etiquetas, fechas DD/MM/YYYY, importes, códigos de tipo
// de vale mal leídos y el importe con letra sin espacios.
//
// Todas las funciones son puras y totales: ante una entrada inválida devuelven
// un valor "desconocido" (bool en false o error), nunca un valor inventado.
package normalize

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidDate la cadena no respeta el formato de fecha esperado.
var ErrInvalidDate = errors.New("normalize: fecha inválida")

// DateLayout formato DD/MM/YYYY que usan los vales y órdenes.
const DateLayout = "02/01/2006"

var (
	digitRun      = regexp.MustCompile(`\d+`)
	strictDate    = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
	amountCleaner = strings.NewReplacer("$", "", ",", "", " ", "", "\u00a0", "", "MXN", "", "M.N.", "")
)

// ExtractInteger devuelve la primera secuencia maximal de dígitos.
// "6 ADMINISTRACION" → 6. Sin dígitos → (0, false).
func ExtractInteger(raw string) (int, bool) {
	m := digitRun.FindString(raw)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

// ParseDate interpreta raw estrictamente como DD/MM/YYYY.
// Cualquier desviación devuelve ErrInvalidDate; el caller debe tratarlo como
// fecha desconocida, no como "hoy".
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	if !strictDate.MatchString(s) {
		return time.Time{}, ErrInvalidDate
	}
	return ParseDateLayout(s, DateLayout)
}

// ParseDateLayout interpreta raw con el layout de Go indicado.
func ParseDateLayout(raw, layout string) (time.Time, error) {
	t, err := time.Parse(layout, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return t, nil
}

// ParseAmount convierte "$6,380.00" en decimal. Sin número válido → (0, false).
func ParseAmount(raw string) (decimal.Decimal, bool) {
	s := amountCleaner.Replace(strings.ToUpper(strings.TrimSpace(raw)))
	if s == "" {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// CleanText recorta y colapsa espacios.
func CleanText(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}

// voucherTypeCorrections códigos de tipo de vale que el PDF entrega mal.
var voucherTypeCorrections = map[string]string{
	"VCV": "VC",
	"VVC": "VC",
	"VCC": "VC",
	"V C": "VC",
	"VGV": "VG",
	"0C":  "OC",
}

// CorrectVoucherTypeCode corrige códigos conocidos; los desconocidos pasan
// sin cambio (ya en mayúsculas y sin espacios alrededor).
func CorrectVoucherTypeCode(raw string) string {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if fixed, ok := voucherTypeCorrections[code]; ok {
		return fixed
	}
	return code
}
