package pdf

import (
	"context"
	"fmt"
	"strings"

	lpdf "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/rs/zerolog"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
)

var _ autocarga.DocumentExtractor = (*Extractor)(nil)

// Extractor lee el texto de vales y órdenes de compra en PDF.
type Extractor struct {
	log zerolog.Logger
}

// NewExtractor crea el extractor.
func NewExtractor(log zerolog.Logger) *Extractor {
	return &Extractor{log: log}
}

// Extract abre el PDF, lo convierte en líneas y aplica el layout detectado.
// Un PDF escaneado sin capa de texto devuelve un documento desconocido y sin
// campos, no un error.
func (e *Extractor) Extract(ctx context.Context, path string) (*entity.ExtractedDocument, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := api.PageCountFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, path, err)
	}

	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrUnreadableDocument, path, err)
	}

	doc := ExtractFields(path, lines)
	e.log.Debug().
		Str("file", path).
		Int("pages", pages).
		Int("lines", len(lines)).
		Str("kind", string(doc.Kind)).
		Int("fields", len(doc.Fields)).
		Msg("pdf extraído")
	return doc, nil
}

// readLines devuelve una línea por renglón de texto, de arriba hacia abajo.
// La librería puede entrar en pánico con streams corruptos.
func readLines(path string) (lines []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			lines, err = nil, fmt.Errorf("lectura de texto: %v", r)
		}
	}()

	f, r, err := lpdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	for i := 1; i <= r.NumPage(); i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		rows, err := p.GetTextByRow()
		if err != nil {
			return nil, fmt.Errorf("página %d: %w", i, err)
		}
		for _, row := range rows {
			if line := joinWords(row.Content); line != "" {
				lines = append(lines, line)
			}
		}
	}
	return lines, nil
}

// joinWords une los fragmentos de un renglón; mete un espacio cuando hay
// hueco horizontal entre uno y otro.
func joinWords(words lpdf.TextHorizontal) string {
	var b strings.Builder
	for i, w := range words {
		if i > 0 {
			prev := words[i-1]
			if prev.W == 0 || w.X > prev.X+prev.W+1 {
				b.WriteByte(' ')
			}
		}
		b.WriteString(w.S)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
