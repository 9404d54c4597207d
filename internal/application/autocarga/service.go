package autocarga

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

// Settings valores por defecto de la autocarga (vienen de config).
type Settings struct {
	Folder          string
	DaysBack        int
	IncludeCFDI     bool
	AmountTolerance float64
	CandidateDays   int
}

// RunOptions parámetros de una corrida. Los campos vacíos toman el valor de
// Settings.
type RunOptions struct {
	Folder      string
	DaysBack    *int
	IncludeCFDI *bool

	// Candidates conjunto de facturas explícito; si es nil se usa Scope.
	Candidates []*entity.Invoice
	Scope      *repository.InvoiceScope

	// DryRun solo marca el reporte; quien llama decide contra qué store corre.
	DryRun bool
}

// ProgressFunc se invoca después de cada archivo.
type ProgressFunc func(processed, total int)

// Progress estado observable de la corrida en curso.
type Progress struct {
	Running   bool  `json:"running"`
	Processed int   `json:"processed"`
	Total     int   `json:"total"`
	State     State `json:"state"`
}

// Service orquesta la autocarga: escaneo de carpeta, extracción,
// normalización, matching y persistencia con contadores.
type Service struct {
	tx        TxRunner
	extractor DocumentExtractor
	parser    CFDIParser
	providers *matching.ProviderMatcher
	invoices  *matching.InvoiceMatcher
	settings  Settings
	log       zerolog.Logger

	running   atomic.Bool
	processed atomic.Int64
	total     atomic.Int64
	state     atomic.Value

	mu   sync.Mutex
	last *RunReport
}

// New construye el servicio.
func New(
	tx TxRunner,
	extractor DocumentExtractor,
	parser CFDIParser,
	providers *matching.ProviderMatcher,
	invoices *matching.InvoiceMatcher,
	settings Settings,
	log zerolog.Logger,
) *Service {
	s := &Service{
		tx:        tx,
		extractor: extractor,
		parser:    parser,
		providers: providers,
		invoices:  invoices,
		settings:  settings,
		log:       log,
	}
	s.state.Store(StateIdle)
	return s
}

// Run ejecuta una corrida completa en la goroutine del llamador. Si ya hay
// otra activa devuelve domain.ErrRunInProgress sin tocar nada.
func (s *Service) Run(ctx context.Context, opts RunOptions, progress ProgressFunc) (*RunReport, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, domain.ErrRunInProgress
	}
	defer s.running.Store(false)

	report := s.newReport(opts)
	p, err := s.plan(opts)
	if err != nil {
		s.abort(report, err)
		return report, err
	}
	s.execute(ctx, p, report, progress)
	s.publish(report)
	return report, report.Fatal
}

// Start valida la configuración y lanza la corrida en segundo plano. El
// reporte queda disponible en LastReport cuando el worker termina.
func (s *Service) Start(ctx context.Context, opts RunOptions, progress ProgressFunc) error {
	if !s.running.CompareAndSwap(false, true) {
		return domain.ErrRunInProgress
	}
	report := s.newReport(opts)
	p, err := s.plan(opts)
	if err != nil {
		s.abort(report, err)
		s.running.Store(false)
		return err
	}

	ctx = context.WithoutCancel(ctx)
	go func() {
		defer s.running.Store(false)
		s.execute(ctx, p, report, progress)
		s.publish(report)
	}()
	return nil
}

// Progress devuelve (procesados, total, corriendo) de la corrida actual.
func (s *Service) Progress() Progress {
	return Progress{
		Running:   s.running.Load(),
		Processed: int(s.processed.Load()),
		Total:     int(s.total.Load()),
		State:     s.currentState(),
	}
}

// LastReport devuelve el reporte de la última corrida terminada, o nil.
func (s *Service) LastReport() *RunReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last
}

func (s *Service) publish(r *RunReport) {
	s.mu.Lock()
	s.last = r
	s.mu.Unlock()
}

func (s *Service) setState(st State) { s.state.Store(st) }

func (s *Service) currentState() State {
	st, _ := s.state.Load().(State)
	return st
}

func (s *Service) newReport(opts RunOptions) *RunReport {
	return &RunReport{
		ID:        uuid.New().String(),
		DryRun:    opts.DryRun,
		State:     StateScanning,
		StartedAt: time.Now().UTC(),
		Stats:     NewRunStats(),
	}
}

func (s *Service) abort(r *RunReport, err error) {
	r.State = StateAborted
	r.Fatal = err
	r.FinishedAt = time.Now().UTC()
	s.setState(StateAborted)
	s.log.Error().Err(err).Str("run", r.ID).Msg("autocarga abortada")
	s.publish(r)
}

// ── Plan y escaneo ───────────────────────────────────────────────────────────

type runPlan struct {
	folder      string
	daysBack    int
	includeCFDI bool
	candidates  []*entity.Invoice
	scope       repository.InvoiceScope
}

// plan resuelve opciones contra Settings y valida todo lo que debe fallar
// antes de tocar un archivo.
func (s *Service) plan(opts RunOptions) (runPlan, error) {
	p := runPlan{
		folder:      s.settings.Folder,
		daysBack:    s.settings.DaysBack,
		includeCFDI: s.settings.IncludeCFDI,
		candidates:  opts.Candidates,
	}
	if opts.Folder != "" {
		p.folder = opts.Folder
	}
	if opts.DaysBack != nil {
		p.daysBack = *opts.DaysBack
	}
	if opts.IncludeCFDI != nil {
		p.includeCFDI = *opts.IncludeCFDI
	}

	if p.folder == "" {
		return p, fmt.Errorf("%w: carpeta no configurada", domain.ErrConfiguration)
	}
	info, err := os.Stat(p.folder)
	if err != nil {
		return p, fmt.Errorf("%w: carpeta %s: %v", domain.ErrConfiguration, p.folder, err)
	}
	if !info.IsDir() {
		return p, fmt.Errorf("%w: %s no es una carpeta", domain.ErrConfiguration, p.folder)
	}
	if p.daysBack < 0 {
		return p, fmt.Errorf("%w: días hacia atrás negativo (%d)", domain.ErrConfiguration, p.daysBack)
	}
	if s.settings.AmountTolerance < 0 || s.settings.AmountTolerance >= 1 {
		return p, fmt.Errorf("%w: tolerancia de importe %v fuera de rango", domain.ErrConfiguration, s.settings.AmountTolerance)
	}

	if opts.Scope != nil {
		p.scope = *opts.Scope
	} else if s.settings.CandidateDays > 0 {
		since := time.Now().AddDate(0, 0, -s.settings.CandidateDays)
		p.scope.Since = &since
	}
	return p, nil
}

// scan lista los archivos de primer nivel modificados dentro de la ventana;
// los XML van primero para que sus facturas ya existan al ligar los vales.
func scan(p runPlan) (xmls, pdfs []string, err error) {
	entries, err := os.ReadDir(p.folder)
	if err != nil {
		return nil, nil, err
	}
	var cutoff time.Time
	if p.daysBack > 0 {
		cutoff = time.Now().AddDate(0, 0, -p.daysBack)
	}
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".pdf" && !(ext == ".xml" && p.includeCFDI) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if !cutoff.IsZero() && info.ModTime().Before(cutoff) {
			continue
		}
		path := filepath.Join(p.folder, e.Name())
		if ext == ".xml" {
			xmls = append(xmls, path)
		} else {
			pdfs = append(pdfs, path)
		}
	}
	return xmls, pdfs, nil
}

// ── Corrida ──────────────────────────────────────────────────────────────────

func (s *Service) execute(ctx context.Context, p runPlan, report *RunReport, progress ProgressFunc) {
	report.Folder = p.folder
	report.DaysBack = p.daysBack
	log := s.log.With().Str("run", report.ID).Logger()

	s.setState(StateScanning)
	xmls, pdfs, err := scan(p)
	if err != nil {
		s.abort(report, fmt.Errorf("%w: %v", domain.ErrConfiguration, err))
		return
	}
	total := len(xmls) + len(pdfs)
	s.processed.Store(0)
	s.total.Store(int64(total))
	report.Stats.FilesScanned = total
	log.Info().Str("folder", p.folder).Int("xml", len(xmls)).Int("pdf", len(pdfs)).Msg("autocarga iniciada")

	done := func() {
		n := s.processed.Add(1)
		if progress != nil {
			progress(int(n), total)
		}
	}

	for _, path := range xmls {
		s.processCFDI(ctx, path, report)
		done()
	}

	ws, err := s.loadWorkingSet(ctx, p)
	if err != nil {
		s.abort(report, fmt.Errorf("facturas candidatas: %w", err))
		return
	}

	for _, path := range pdfs {
		s.processPDF(ctx, path, ws, report)
		done()
	}

	s.setState(StateReporting)
	report.State = StateCompleted
	report.FinishedAt = time.Now().UTC()
	s.setState(StateCompleted)
	log.Info().
		Int("files", total).
		Int("errors", len(report.Errors)).
		Dur("duration", report.Duration()).
		Msg("autocarga terminada")
}

// loadWorkingSet arma el conjunto de facturas candidatas de la corrida.
func (s *Service) loadWorkingSet(ctx context.Context, p runPlan) (*workingSet, error) {
	if p.candidates != nil {
		return newWorkingSet(p.candidates), nil
	}
	var list []*entity.Invoice
	err := s.tx.RunInTx(ctx, func(repos Repositories) error {
		var err error
		list, err = repos.Invoices.FindCandidates(ctx, p.scope)
		return err
	})
	if err != nil {
		return nil, err
	}
	return newWorkingSet(list), nil
}

func (s *Service) processCFDI(ctx context.Context, path string, report *RunReport) {
	s.setState(StateExtracting)
	c, err := s.parser.Parse(ctx, path)
	if err != nil {
		s.fail(report, path, StageParse, KindInvoice, err)
		return
	}
	out, _, err := s.importCFDI(ctx, c)
	if err != nil {
		s.fail(report, path, StagePersist, KindInvoice, err)
		return
	}
	out.apply(report.Stats, KindInvoice)
}

func (s *Service) processPDF(ctx context.Context, path string, ws *workingSet, report *RunReport) {
	s.setState(StateExtracting)
	doc, err := s.extractor.Extract(ctx, path)
	if err != nil {
		s.fail(report, path, StageExtract, "", err)
		return
	}

	var (
		out  outcome
		kind Kind
	)
	switch doc.Kind {
	case entity.DocumentKindVoucher:
		kind = KindVoucher
		s.setState(StateNormalizing)
		v, nerr := voucherFromDocument(doc)
		if nerr != nil {
			s.fail(report, path, StageExtract, kind, nerr)
			return
		}
		out, err = s.ingestVoucher(ctx, v, ws)
	case entity.DocumentKindPurchaseOrder:
		kind = KindPurchaseOrder
		s.setState(StateNormalizing)
		o, nerr := purchaseOrderFromDocument(doc)
		if nerr != nil {
			s.fail(report, path, StageExtract, kind, nerr)
			return
		}
		out, err = s.ingestPurchaseOrder(ctx, o, ws)
	default:
		report.Stats.FilesSkipped++
		s.log.Debug().Str("file", path).Msg("layout no reconocido, se omite")
		return
	}
	if err != nil {
		s.fail(report, path, StagePersist, kind, err)
		return
	}
	out.apply(report.Stats, kind)
}

// fail registra el error del archivo y sigue con el siguiente.
func (s *Service) fail(report *RunReport, path string, stage Stage, kind Kind, err error) {
	report.Errors = append(report.Errors, &FileError{File: path, Stage: stage, Err: err})
	report.Stats.FilesErrored++
	if kind != "" {
		report.Stats.Of(kind).Errored++
	}
	ev := s.log.Warn()
	if !errors.Is(err, domain.ErrUnreadableDocument) && !errors.Is(err, domain.ErrMalformedDocument) {
		ev = s.log.Error()
	}
	ev.Err(err).Str("file", path).Str("stage", string(stage)).Str("kind", string(kind)).Msg("archivo con error")
}
