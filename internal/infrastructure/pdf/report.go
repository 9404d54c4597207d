// Package pdf lee vales y órdenes de compra en PDF y genera el resumen de
// la autocarga.
//
// Layout del resumen (A4):
//
//	┌─────────────────────────────────────────────────────────────┐
//	│  HEADER: Autocarga + ID corrida │ Estado + Fecha            │
//	│  CARPETA: ruta / días / simulación                          │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TABLA: Tipo | Creados | Ligados | Duplicados | Sin liga |… │
//	│  ─────────────────────────────────────────────────────────  │
//	│  TOTALES: archivos / códigos / conflictos / ambiguas         │
//	│  ERRORES: archivo [etapa]: mensaje                          │
//	└─────────────────────────────────────────────────────────────┘
package pdf

import (
	"fmt"
	"path/filepath"
	"time"

	maroto "github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/row"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/consts/pagesize"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
)

var _ autocarga.ReportRenderer = (*ReportGenerator)(nil)

// ── Paleta de colores ─────────────────────────────────────────────────────────

var (
	colorPrimary = &props.Color{Red: 0, Green: 70, Blue: 127}
	colorGray    = &props.Color{Red: 100, Green: 100, Blue: 100}
	colorError   = &props.Color{Red: 170, Green: 30, Blue: 30}
)

var kindLabels = map[autocarga.Kind]string{
	autocarga.KindVoucher:       "Vales",
	autocarga.KindPurchaseOrder: "Órdenes de compra",
	autocarga.KindProvider:      "Proveedores",
	autocarga.KindInvoice:       "Facturas (CFDI)",
}

// ── Generator ─────────────────────────────────────────────────────────────────

// ReportGenerator implementa autocarga.ReportRenderer usando Maroto v2.
type ReportGenerator struct{}

// NewReportGenerator construye el generador.
func NewReportGenerator() *ReportGenerator { return &ReportGenerator{} }

// Render genera el PDF del resumen y devuelve sus bytes.
func (g *ReportGenerator) Render(report *autocarga.RunReport) ([]byte, error) {
	if report == nil {
		return nil, fmt.Errorf("pdf: reporte vacío")
	}
	cfg := config.NewBuilder().
		WithPageSize(pagesize.A4).
		WithLeftMargin(10).WithRightMargin(10).
		WithTopMargin(10).WithBottomMargin(10).
		WithDefaultFont(&props.Font{Family: "helvetica", Size: 9}).
		WithTitle("Resumen de autocarga", true).
		WithAuthor("autocarga", true).
		Build()

	m := maroto.New(cfg)

	m.AddRows(headerRow(report))
	m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.5}))
	m.AddRows(folderRow(report))

	if report.Fatal != nil {
		m.AddRows(row.New(12).Add(col.New(12).Add(
			text.New("Corrida abortada: "+report.Fatal.Error(), props.Text{
				Style: fontstyle.Bold, Size: 10, Color: colorError, Top: 3,
			}),
		)))
	} else {
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(tableHeaderRow())
		m.AddRows(tableRows(report.Stats)...)
		m.AddRows(line.NewRow(1, props.Line{Color: colorPrimary, Thickness: 0.3}))
		m.AddRows(totalsRow(report.Stats))
		m.AddRows(errorRows(report.Errors)...)
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("pdf: generar documento: %w", err)
	}
	return doc.GetBytes(), nil
}

// ── Secciones ─────────────────────────────────────────────────────────────────

func headerRow(r *autocarga.RunReport) core.Row {
	return row.New(18).Add(
		col.New(7).Add(
			text.New("AUTOCARGA", props.Text{
				Style: fontstyle.Bold, Size: 13, Color: colorPrimary, Top: 1,
			}),
			text.New("Corrida: "+r.ID, props.Text{
				Size: 8, Top: 9, Color: colorGray,
			}),
		),
		col.New(5).Add(
			text.New(stateLabel(r.State), props.Text{
				Style: fontstyle.Bold, Size: 10, Align: align.Right, Top: 1,
			}),
			text.New("Inicio: "+r.StartedAt.Local().Format("02/01/2006 15:04"), props.Text{
				Size: 8, Align: align.Right, Top: 8, Color: colorGray,
			}),
			text.New(fmt.Sprintf("Duración: %s", r.Duration().Round(time.Second)), props.Text{
				Size: 8, Align: align.Right, Top: 13, Color: colorGray,
			}),
		),
	)
}

// folderLine resume carpeta, ventana y modo; sin carpeta se muestra "-".
func folderLine(r *autocarga.RunReport) string {
	mode := "definitiva"
	if r.DryRun {
		mode = "simulación (sin guardar)"
	}
	return fmt.Sprintf("%s   |   Días: %d   |   Corrida %s", nonEmpty(r.Folder, "-"), r.DaysBack, mode)
}

func folderRow(r *autocarga.RunReport) core.Row {
	return row.New(12).Add(
		col.New(12).Add(
			text.New("CARPETA", props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorPrimary, Top: 1,
			}),
			text.New(folderLine(r), props.Text{Size: 8, Top: 7, Color: colorGray}),
		),
	)
}

func tableHeaderRow() core.Row {
	h := func(label string, size int, a align.Type) core.Col {
		return col.New(size).Add(text.New(label, props.Text{
			Style: fontstyle.Bold, Size: 8, Align: a,
			Color: colorPrimary, Top: 2, Left: 1, Right: 1,
		}))
	}
	return row.New(8).Add(
		h("Tipo", 3, align.Left),
		h("Creados", 2, align.Right),
		h("Ligados", 2, align.Right),
		h("Duplicados", 2, align.Right),
		h("Sin liga", 2, align.Right),
		h("Errores", 1, align.Right),
	)
}

// tableRows una fila por tipo de entidad, en orden fijo.
func tableRows(st *autocarga.RunStats) []core.Row {
	cell := func(n, size int) core.Col {
		return col.New(size).Add(text.New(fmt.Sprintf("%d", n),
			props.Text{Size: 8, Align: align.Right, Top: 1, Right: 1}))
	}
	rows := make([]core.Row, 0, len(autocarga.Kinds))
	for _, k := range autocarga.Kinds {
		c := st.Of(k)
		rows = append(rows, row.New(7).Add(
			col.New(3).Add(text.New(kindLabels[k], props.Text{Size: 8, Top: 1, Left: 1})),
			cell(c.Created, 2),
			cell(c.Linked, 2),
			cell(c.SkippedDuplicate, 2),
			cell(c.Unmatched, 2),
			cell(c.Errored, 1),
		))
	}
	return rows
}

func totalsRow(st *autocarga.RunStats) core.Row {
	items := []struct {
		label string
		n     int
	}{
		{"Archivos revisados:", st.FilesScanned},
		{"Archivos omitidos:", st.FilesSkipped},
		{"Archivos con error:", st.FilesErrored},
		{"Códigos asignados:", st.CodesBackfilled},
		{"Conflictos de código:", st.CodeConflicts},
		{"Coincidencias ambiguas:", st.Ambiguous},
	}
	labels := col.New(4)
	values := col.New(1)
	for i, it := range items {
		top := float64(1 + 5*i)
		labels.Add(text.New(it.label, props.Text{Style: fontstyle.Bold, Size: 9, Align: align.Right, Right: 2, Top: top}))
		values.Add(text.New(fmt.Sprintf("%d", it.n), props.Text{Size: 9, Align: align.Right, Right: 1, Top: top}))
	}
	return row.New(float64(2+5*len(items))).Add(col.New(5), labels, values, col.New(2))
}

// errorRows lista los archivos con error; los mensajes largos se parten.
func errorRows(errs []*autocarga.FileError) []core.Row {
	if len(errs) == 0 {
		return nil
	}
	rows := []core.Row{
		row.New(8).Add(col.New(12).Add(
			text.New(fmt.Sprintf("ERRORES (%d)", len(errs)), props.Text{
				Style: fontstyle.Bold, Size: 8, Color: colorError, Top: 3,
			}),
		)),
	}
	for _, e := range errs {
		msg := fmt.Sprintf("%s [%s]: %v", filepath.Base(e.File), e.Stage, e.Err)
		for _, chunk := range splitEvery(msg, 110) {
			rows = append(rows, row.New(4).Add(col.New(12).Add(
				text.New(chunk, props.Text{Size: 7, Color: colorGray, Top: 0.5, Left: 2}),
			)))
		}
	}
	return rows
}

// ── helpers ───────────────────────────────────────────────────────────────────

func stateLabel(s autocarga.State) string {
	switch s {
	case autocarga.StateCompleted:
		return "COMPLETADA"
	case autocarga.StateAborted:
		return "ABORTADA"
	default:
		return "EN CURSO"
	}
}

func nonEmpty(s, fallback string) string {
	if s != "" {
		return s
	}
	return fallback
}

// splitEvery divide s en trozos de max n runas.
func splitEvery(s string, n int) []string {
	var parts []string
	r := []rune(s)
	for len(r) > n {
		parts = append(parts, string(r[:n]))
		r = r[n:]
	}
	if len(r) > 0 {
		parts = append(parts, string(r))
	}
	return parts
}
