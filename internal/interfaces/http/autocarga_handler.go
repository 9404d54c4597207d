package http

import (
	"context"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/application/dto"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
)

// AutoCargaService contrato que el handler necesita del orquestador. Lo
// implementa *autocarga.Service.
type AutoCargaService interface {
	Start(ctx context.Context, opts autocarga.RunOptions, progress autocarga.ProgressFunc) error
	Progress() autocarga.Progress
	LastReport() *autocarga.RunReport
	Relink(ctx context.Context, scope repository.InvoiceScope) (*autocarga.RunStats, error)
	RepairAmountWords(ctx context.Context) (int, error)
}

// AutoCargaHandler maneja las peticiones HTTP de la autocarga (protegido).
type AutoCargaHandler struct {
	svc      AutoCargaService
	renderer autocarga.ReportRenderer
	log      zerolog.Logger
}

// NewAutoCargaHandler construye el handler.
func NewAutoCargaHandler(svc AutoCargaService, renderer autocarga.ReportRenderer, log zerolog.Logger) *AutoCargaHandler {
	return &AutoCargaHandler{svc: svc, renderer: renderer, log: log}
}

// StartRun lanza una corrida en segundo plano.
// POST /api/autocarga/runs
func (h *AutoCargaHandler) StartRun(c *fiber.Ctx) error {
	var in dto.StartRunRequest
	if err := BindAndValidate(c, &in); err != nil {
		return badRequest(c, err)
	}
	opts := autocarga.RunOptions{Folder: in.Folder, DaysBack: in.DaysBack, IncludeCFDI: in.IncludeCFDI}
	if err := h.svc.Start(c.UserContext(), opts, nil); err != nil {
		return h.serviceError(c, err)
	}
	h.log.Info().Str("user", GetUserID(c)).Msg("autocarga lanzada desde API")
	return c.Status(fiber.StatusAccepted).JSON(progressResponse(h.svc.Progress()))
}

// Progress devuelve el avance de la corrida.
// GET /api/autocarga/runs/progress
func (h *AutoCargaHandler) Progress(c *fiber.Ctx) error {
	return c.JSON(progressResponse(h.svc.Progress()))
}

// LastReport devuelve el resumen de la última corrida terminada.
// GET /api/autocarga/runs/last
func (h *AutoCargaHandler) LastReport(c *fiber.Ctx) error {
	r := h.svc.LastReport()
	if r == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "no hay corridas terminadas"})
	}
	return c.JSON(reportResponse(r))
}

// LastReportPDF devuelve el resumen en PDF.
// GET /api/autocarga/runs/last/pdf
func (h *AutoCargaHandler) LastReportPDF(c *fiber.Ctx) error {
	r := h.svc.LastReport()
	if r == nil {
		return c.Status(fiber.StatusNotFound).JSON(dto.ErrorResponse{Code: "NOT_FOUND", Message: "no hay corridas terminadas"})
	}
	pdf, err := h.renderer.Render(r)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="autocarga-`+r.ID+`.pdf"`)
	return c.Send(pdf)
}

// Relink reintenta ligar vales y órdenes pendientes.
// POST /api/autocarga/relink
func (h *AutoCargaHandler) Relink(c *fiber.Ctx) error {
	var in dto.RelinkRequest
	if err := BindAndValidate(c, &in); err != nil {
		return badRequest(c, err)
	}
	scope := repository.InvoiceScope{OnlyUnpaid: in.OnlyUnpaid, Limit: in.Limit}
	if in.SinceDays != nil {
		since := time.Now().AddDate(0, 0, -*in.SinceDays)
		scope.Since = &since
	}
	stats, err := h.svc.Relink(c.UserContext(), scope)
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(statsResponse(stats))
}

// RepairAmountWords corrige importes con letra guardados sin espacios.
// POST /api/autocarga/amount-words/repair
func (h *AutoCargaHandler) RepairAmountWords(c *fiber.Ctx) error {
	n, err := h.svc.RepairAmountWords(c.UserContext())
	if err != nil {
		return h.serviceError(c, err)
	}
	return c.JSON(dto.RepairResponse{Updated: n})
}

func (h *AutoCargaHandler) serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrRunInProgress):
		return c.Status(fiber.StatusConflict).JSON(dto.ErrorResponse{Code: "RUN_IN_PROGRESS", Message: err.Error()})
	case errors.Is(err, domain.ErrConfiguration):
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "CONFIGURATION", Message: err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.Path()).Msg("error de autocarga")
		return c.Status(fiber.StatusInternalServerError).JSON(dto.ErrorResponse{Code: "INTERNAL", Message: err.Error()})
	}
}

// ── mapeo a DTO ───────────────────────────────────────────────────────────────

func progressResponse(p autocarga.Progress) dto.ProgressResponse {
	return dto.ProgressResponse{Running: p.Running, Processed: p.Processed, Total: p.Total, State: string(p.State)}
}

func statsResponse(st *autocarga.RunStats) dto.StatsResponse {
	out := dto.StatsResponse{
		ByKind:          make(map[string]dto.CountersResponse, len(autocarga.Kinds)),
		FilesScanned:    st.FilesScanned,
		FilesSkipped:    st.FilesSkipped,
		FilesErrored:    st.FilesErrored,
		CodesBackfilled: st.CodesBackfilled,
		CodeConflicts:   st.CodeConflicts,
		Ambiguous:       st.Ambiguous,
	}
	for _, k := range autocarga.Kinds {
		c := st.Of(k)
		out.ByKind[string(k)] = dto.CountersResponse{
			Created:          c.Created,
			Linked:           c.Linked,
			SkippedDuplicate: c.SkippedDuplicate,
			Unmatched:        c.Unmatched,
			Errored:          c.Errored,
		}
	}
	return out
}

func reportResponse(r *autocarga.RunReport) dto.RunReportResponse {
	out := dto.RunReportResponse{
		ID:        r.ID,
		Folder:    r.Folder,
		DaysBack:  r.DaysBack,
		DryRun:    r.DryRun,
		State:     string(r.State),
		StartedAt: r.StartedAt,
		Stats:     statsResponse(r.Stats),
		Errors:    make([]dto.FileErrorResponse, 0, len(r.Errors)),
	}
	if !r.FinishedAt.IsZero() {
		t := r.FinishedAt
		out.FinishedAt = &t
	}
	if r.Fatal != nil {
		out.Fatal = r.Fatal.Error()
	}
	for _, e := range r.Errors {
		out.Errors = append(out.Errors, dto.FileErrorResponse{File: e.File, Stage: string(e.Stage), Message: e.Err.Error()})
	}
	return out
}
