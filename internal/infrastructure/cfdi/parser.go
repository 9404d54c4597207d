// Package cfdi lee comprobantes fiscales CFDI 4.0 (XML del SAT) con etree.
package cfdi

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

// Namespace CFDI versión 4.0.
const Namespace = "http://www.sat.gob.mx/cfd/4"

// fechaLayout formato del atributo Fecha (hora local del emisor, sin zona).
const fechaLayout = "2006-01-02T15:04:05"

// Códigos de impuesto en Retencion/@Impuesto.
const (
	impuestoISR = "001"
	impuestoIVA = "002"
)

var _ autocarga.CFDIParser = (*Parser)(nil)

// Parser implementa autocarga.CFDIParser.
type Parser struct{}

// NewParser construye el parser.
func NewParser() *Parser { return &Parser{} }

// Parse lee el archivo y lo interpreta como CFDI 4.0.
func (p *Parser) Parse(_ context.Context, path string) (*entity.CFDIInvoice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %v", path, domain.ErrUnreadableDocument, err)
	}
	inv, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	inv.Path = path
	return inv, nil
}

// ParseBytes interpreta el XML. Sintaxis inválida, namespace distinto o
// atributos obligatorios ausentes devuelven domain.ErrMalformedDocument.
func (p *Parser) ParseBytes(data []byte) (*entity.CFDIInvoice, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = charsetReader
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, malformed("xml: %v", err)
	}

	root := doc.Root()
	if root == nil || root.Tag != "Comprobante" {
		return nil, malformed("raíz distinta de Comprobante")
	}
	if ns := root.NamespaceURI(); ns != Namespace {
		return nil, malformed("namespace %q no es CFDI 4.0", ns)
	}

	inv := &entity.CFDIInvoice{
		Version:  root.SelectAttrValue("Version", ""),
		Series:   strings.TrimSpace(root.SelectAttrValue("Serie", "")),
		Folio:    strings.TrimSpace(root.SelectAttrValue("Folio", "")),
		Currency: root.SelectAttrValue("Moneda", ""),
	}
	if inv.Folio == "" {
		return nil, malformed("Comprobante sin Folio")
	}

	fecha, err := requiredAttr(root, "Fecha")
	if err != nil {
		return nil, err
	}
	if inv.IssueDate, err = time.Parse(fechaLayout, fecha); err != nil {
		return nil, malformed("Fecha %q: %v", fecha, err)
	}
	if inv.Subtotal, err = decimalAttr(root, "SubTotal", true); err != nil {
		return nil, err
	}
	if inv.Total, err = decimalAttr(root, "Total", true); err != nil {
		return nil, err
	}

	emisor := root.SelectElement("Emisor")
	receptor := root.SelectElement("Receptor")
	if emisor == nil || receptor == nil {
		return nil, malformed("faltan Emisor o Receptor")
	}
	inv.Issuer = party(emisor)
	inv.Receiver = party(receptor)
	if inv.Issuer.RFC == "" {
		return nil, malformed("Emisor sin Rfc")
	}

	if imp := root.SelectElement("Impuestos"); imp != nil {
		if inv.TransferredTax, err = decimalAttr(imp, "TotalImpuestosTrasladados", false); err != nil {
			return nil, err
		}
		if ret := imp.SelectElement("Retenciones"); ret != nil {
			for _, r := range ret.SelectElements("Retencion") {
				importe, err := decimalAttr(r, "Importe", true)
				if err != nil {
					return nil, err
				}
				switch r.SelectAttrValue("Impuesto", "") {
				case impuestoIVA:
					inv.WithheldVAT = inv.WithheldVAT.Add(importe)
				case impuestoISR:
					inv.WithheldISR = inv.WithheldISR.Add(importe)
				}
			}
		}
	}

	if conceptos := root.SelectElement("Conceptos"); conceptos != nil {
		for _, c := range conceptos.SelectElements("Concepto") {
			concept, err := parseConcept(c)
			if err != nil {
				return nil, err
			}
			inv.Concepts = append(inv.Concepts, concept)
		}
	}

	if tfd := root.FindElement("./Complemento/TimbreFiscalDigital"); tfd != nil {
		inv.FiscalUUID = strings.ToUpper(tfd.SelectAttrValue("UUID", ""))
	}
	return inv, nil
}

func parseConcept(c *etree.Element) (entity.CFDIConcept, error) {
	var (
		out entity.CFDIConcept
		err error
	)
	out.Description = strings.TrimSpace(c.SelectAttrValue("Descripcion", ""))
	if out.Quantity, err = decimalAttr(c, "Cantidad", true); err != nil {
		return out, err
	}
	if out.UnitPrice, err = decimalAttr(c, "ValorUnitario", true); err != nil {
		return out, err
	}
	if out.Amount, err = decimalAttr(c, "Importe", true); err != nil {
		return out, err
	}
	return out, nil
}

func party(e *etree.Element) entity.CFDIParty {
	return entity.CFDIParty{
		RFC:    strings.ToUpper(strings.TrimSpace(e.SelectAttrValue("Rfc", ""))),
		Name:   strings.TrimSpace(e.SelectAttrValue("Nombre", "")),
		Regime: e.SelectAttrValue("RegimenFiscal", ""),
	}
}

func requiredAttr(e *etree.Element, key string) (string, error) {
	v := strings.TrimSpace(e.SelectAttrValue(key, ""))
	if v == "" {
		return "", malformed("%s sin atributo %s", e.Tag, key)
	}
	return v, nil
}

func decimalAttr(e *etree.Element, key string, required bool) (decimal.Decimal, error) {
	raw := strings.TrimSpace(e.SelectAttrValue(key, ""))
	if raw == "" {
		if required {
			return decimal.Zero, malformed("%s sin atributo %s", e.Tag, key)
		}
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, malformed("%s/@%s=%q: %v", e.Tag, key, raw, err)
	}
	return d, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedDocument, fmt.Sprintf(format, args...))
}

// charsetReader decodifica XML declarados en ISO-8859-1 (algunos PAC antiguos).
func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	switch strings.ToUpper(charset) {
	case "ISO-8859-1", "ISO8859-1", "LATIN1":
		return transform.NewReader(input, charmap.ISO8859_1.NewDecoder()), nil
	case "WINDOWS-1252", "CP1252":
		return transform.NewReader(input, charmap.Windows1252.NewDecoder()), nil
	}
	return input, nil
}
