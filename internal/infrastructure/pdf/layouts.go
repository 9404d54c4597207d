package pdf

import (
	"regexp"
	"strings"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// labelRule nombres (fragmentos regex, sin distinguir mayúsculas) con los que
// un campo aparece impreso en el PDF. El orden importa: en la misma posición
// gana la primera regla, así "Importe con letra" va antes que "Importe".
type labelRule struct {
	field entity.FieldLabel
	names []string
}

var voucherRules = []labelRule{
	{entity.FieldVoucherNumber, []string{`no\.?\s*(?:de\s+)?vale`, `folio\s+(?:del\s+)?vale`}},
	{entity.FieldVoucherType, []string{`tipo(?:\s+de\s+vale)?`}},
	{entity.FieldSourceDocument, []string{`no\.?\s*(?:de\s+)?documento`, `documento\s+origen`, `no\.?\s*(?:de\s+)?factura`, `factura`}},
	{entity.FieldProviderCode, []string{`no\.?\s*(?:de\s+)?proveedor`, `c[oó]digo(?:\s+(?:de\s+|del\s+)?proveedor)?`}},
	{entity.FieldProviderName, []string{`nombre(?:\s+del)?\s+proveedor`, `proveedor`, `beneficiario`}},
	{entity.FieldIssueDate, []string{`fecha(?:\s+de\s+(?:emisi[oó]n|elaboraci[oó]n))?`}},
	{entity.FieldAmountText, []string{`cantidad\s+con\s+letra`, `importe\s+con\s+letra`, `son`}},
	{entity.FieldAmount, []string{`importe`, `total`, `monto`}},
	{entity.FieldDepartment, []string{`departamento`, `depto\.?`}},
}

var purchaseOrderRules = []labelRule{
	{entity.FieldReferenceNumber, []string{`no\.?\s*(?:de\s+)?(?:orden|referencia)`, `referencia`, `folio`}},
	{entity.FieldProviderAccountCode, []string{`cuenta\s+(?:del\s+)?proveedor`, `no\.?\s*(?:de\s+)?proveedor`, `c[oó]digo(?:\s+(?:de\s+|del\s+)?proveedor)?`}},
	{entity.FieldLedgerAccount, []string{`cuenta\s+contable`, `cta\.?\s+contable`}},
	{entity.FieldProviderName, []string{`nombre(?:\s+del)?\s+proveedor`, `proveedor`, `beneficiario`, `raz[oó]n\s+social`}},
	{entity.FieldIssueDate, []string{`fecha(?:\s+de\s+(?:emisi[oó]n|elaboraci[oó]n))?`}},
	{entity.FieldAmountInWords, []string{`importe\s+con\s+letra`, `cantidad\s+con\s+letra`, `son`}},
	{entity.FieldAmount, []string{`importe`, `total`, `monto`}},
}

// layout une todas las etiquetas en una sola expresión con un grupo por
// campo; FindAll parte cada línea en segmentos etiqueta → valor.
type layout struct {
	re     *regexp.Regexp
	fields []entity.FieldLabel
}

func compileLayout(rules []labelRule) layout {
	var b strings.Builder
	b.WriteString(`(?i)(?:^|\s)(?:`)
	fields := make([]entity.FieldLabel, 0, len(rules))
	for i, r := range rules {
		if i > 0 {
			b.WriteString("|")
		}
		b.WriteString("(" + strings.Join(r.names, "|") + ")")
		fields = append(fields, r.field)
	}
	b.WriteString(`)\s*:`)
	return layout{re: regexp.MustCompile(b.String()), fields: fields}
}

var (
	voucherLayout       = compileLayout(voucherRules)
	purchaseOrderLayout = compileLayout(purchaseOrderRules)

	voucherHeader       = regexp.MustCompile(`(?i)\bVALE\b`)
	voucherNumberLabel  = regexp.MustCompile(`(?i)no\.?\s*(?:de\s+)?vale\s*:`)
	purchaseOrderHeader = regexp.MustCompile(`(?i)\bORDEN\s+DE\s+(?:COMPRA|PAGO)\b`)
)

// ClassifyLayout decide el tipo de documento por su texto: encabezado VALE
// con la etiqueta "No. Vale", u "ORDEN DE COMPRA"/"ORDEN DE PAGO".
func ClassifyLayout(lines []string) entity.DocumentKind {
	text := strings.Join(lines, "\n")
	switch {
	case voucherHeader.MatchString(text) && voucherNumberLabel.MatchString(text):
		return entity.DocumentKindVoucher
	case purchaseOrderHeader.MatchString(text):
		return entity.DocumentKindPurchaseOrder
	default:
		return entity.DocumentKindUnknown
	}
}

// ExtractFields clasifica y toma los campos del layout detectado. Si una
// etiqueta aparece varias veces gana la primera; las vacías no se incluyen.
func ExtractFields(path string, lines []string) *entity.ExtractedDocument {
	doc := &entity.ExtractedDocument{
		Path:   path,
		Kind:   ClassifyLayout(lines),
		Fields: make(map[entity.FieldLabel]string),
	}
	var l layout
	switch doc.Kind {
	case entity.DocumentKindVoucher:
		l = voucherLayout
	case entity.DocumentKindPurchaseOrder:
		l = purchaseOrderLayout
	default:
		return doc
	}

	for _, line := range lines {
		matches := l.re.FindAllStringSubmatchIndex(line, -1)
		for i, m := range matches {
			field, ok := l.fieldOf(m)
			if !ok {
				continue
			}
			end := len(line)
			if i+1 < len(matches) {
				end = matches[i+1][0]
			}
			value := strings.Join(strings.Fields(line[m[1]:end]), " ")
			if value == "" {
				continue
			}
			if _, seen := doc.Fields[field]; !seen {
				doc.Fields[field] = value
			}
		}
	}
	return doc
}

// fieldOf devuelve el campo cuyo grupo participó en el match.
func (l layout) fieldOf(m []int) (entity.FieldLabel, bool) {
	for i, f := range l.fields {
		if m[2*(i+1)] >= 0 {
			return f, true
		}
	}
	return "", false
}
