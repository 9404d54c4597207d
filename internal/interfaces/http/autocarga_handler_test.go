package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/application/dto"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
	apphttp "github.com/GerzaFM/Autosol2-sub000/internal/interfaces/http"
	pkgjwt "github.com/GerzaFM/Autosol2-sub000/pkg/jwt"
)

// ── fakes ─────────────────────────────────────────────────────────────────────

type fakeService struct {
	startErr  error
	started   []autocarga.RunOptions
	progress  autocarga.Progress
	last      *autocarga.RunReport
	relinked  []repository.InvoiceScope
	relinkErr error
	repaired  int
}

func (f *fakeService) Start(_ context.Context, opts autocarga.RunOptions, _ autocarga.ProgressFunc) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.started = append(f.started, opts)
	f.progress = autocarga.Progress{Running: true, State: autocarga.StateScanning}
	return nil
}

func (f *fakeService) Progress() autocarga.Progress     { return f.progress }
func (f *fakeService) LastReport() *autocarga.RunReport { return f.last }

func (f *fakeService) Relink(_ context.Context, scope repository.InvoiceScope) (*autocarga.RunStats, error) {
	if f.relinkErr != nil {
		return nil, f.relinkErr
	}
	f.relinked = append(f.relinked, scope)
	st := autocarga.NewRunStats()
	st.Of(autocarga.KindVoucher).Linked = 2
	return st, nil
}

func (f *fakeService) RepairAmountWords(context.Context) (int, error) {
	return f.repaired, nil
}

type fakeRenderer struct{}

func (fakeRenderer) Render(r *autocarga.RunReport) ([]byte, error) {
	return []byte("%PDF-fake " + r.ID), nil
}

// ── helpers ───────────────────────────────────────────────────────────────────

func newAutoCargaApp(svc *fakeService) *fiber.App {
	app := fiber.New()
	apphttp.Router(app, apphttp.RouterDeps{
		AutoCarga: svc,
		Renderer:  fakeRenderer{},
		JWTSecret: testJWTSecret,
		Log:       zerolog.Nop(),
	})
	return app
}

func call(t *testing.T, app *fiber.App, method, path, role, body string) *http.Response {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if role != "" {
		req.Header.Set("Authorization", tokenForRole(t, role))
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// ── POST /runs ────────────────────────────────────────────────────────────────

func TestStartRun_Acepta(t *testing.T) {
	svc := &fakeService{}
	app := newAutoCargaApp(svc)

	resp := call(t, app, http.MethodPost, "/api/autocarga/runs", pkgjwt.RoleContador, `{"folder":"/data/in","days_back":5}`)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)

	p := decode[dto.ProgressResponse](t, resp)
	assert.True(t, p.Running)
	assert.Equal(t, "scanning", p.State)

	require.Len(t, svc.started, 1)
	assert.Equal(t, "/data/in", svc.started[0].Folder)
	require.NotNil(t, svc.started[0].DaysBack)
	assert.Equal(t, 5, *svc.started[0].DaysBack)
	assert.Nil(t, svc.started[0].IncludeCFDI)
}

func TestStartRun_SinCuerpoUsaConfiguracion(t *testing.T) {
	svc := &fakeService{}
	resp := call(t, newAutoCargaApp(svc), http.MethodPost, "/api/autocarga/runs", pkgjwt.RoleAdmin, "")
	resp.Body.Close()

	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	require.Len(t, svc.started, 1)
	assert.Empty(t, svc.started[0].Folder)
	assert.Nil(t, svc.started[0].DaysBack)
}

func TestStartRun_Errores(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		body   string
		status int
		code   string
	}{
		{"corrida en curso", domain.ErrRunInProgress, "", http.StatusConflict, "RUN_IN_PROGRESS"},
		{"configuración", fmt.Errorf("carpeta: %w", domain.ErrConfiguration), "", http.StatusBadRequest, "CONFIGURATION"},
		{"días negativos", nil, `{"days_back":-1}`, http.StatusBadRequest, "VALIDATION"},
		{"json roto", nil, `{"folder":`, http.StatusBadRequest, "INVALID_BODY"},
		{"error interno", errors.New("boom"), "", http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := newAutoCargaApp(&fakeService{startErr: tc.err})
			resp := call(t, app, http.MethodPost, "/api/autocarga/runs", pkgjwt.RoleAdmin, tc.body)
			assert.Equal(t, tc.status, resp.StatusCode)
			assert.Equal(t, tc.code, decode[dto.ErrorResponse](t, resp).Code)
		})
	}
}

func TestStartRun_RolConsultaBloqueado(t *testing.T) {
	svc := &fakeService{}
	resp := call(t, newAutoCargaApp(svc), http.MethodPost, "/api/autocarga/runs", pkgjwt.RoleConsulta, "")
	resp.Body.Close()

	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Empty(t, svc.started)
}

// ── consultas ─────────────────────────────────────────────────────────────────

func TestProgress_CualquierRol(t *testing.T) {
	svc := &fakeService{progress: autocarga.Progress{Running: true, Processed: 3, Total: 10, State: autocarga.StateMatching}}
	resp := call(t, newAutoCargaApp(svc), http.MethodGet, "/api/autocarga/runs/progress", pkgjwt.RoleConsulta, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	p := decode[dto.ProgressResponse](t, resp)
	assert.Equal(t, dto.ProgressResponse{Running: true, Processed: 3, Total: 10, State: "matching"}, p)
}

func TestLastReport(t *testing.T) {
	svc := &fakeService{}
	app := newAutoCargaApp(svc)

	resp := call(t, app, http.MethodGet, "/api/autocarga/runs/last", pkgjwt.RoleConsulta, "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()

	st := autocarga.NewRunStats()
	st.FilesScanned = 4
	st.Of(autocarga.KindVoucher).Created = 2
	st.Of(autocarga.KindInvoice).SkippedDuplicate = 1
	started := time.Date(2026, 1, 2, 10, 0, 0, 0, time.UTC)
	svc.last = &autocarga.RunReport{
		ID:         "run-1",
		Folder:     "/data/in",
		DaysBack:   7,
		State:      autocarga.StateCompleted,
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Stats:      st,
		Errors: []*autocarga.FileError{
			{File: "roto.pdf", Stage: autocarga.StageExtract, Err: domain.ErrUnreadableDocument},
		},
	}

	resp = call(t, app, http.MethodGet, "/api/autocarga/runs/last", pkgjwt.RoleConsulta, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	r := decode[dto.RunReportResponse](t, resp)

	assert.Equal(t, "run-1", r.ID)
	assert.Equal(t, "completed", r.State)
	require.NotNil(t, r.FinishedAt)
	assert.Equal(t, 4, r.Stats.FilesScanned)
	assert.Equal(t, 2, r.Stats.ByKind["voucher"].Created)
	assert.Equal(t, 1, r.Stats.ByKind["invoice"].SkippedDuplicate)
	assert.Len(t, r.Stats.ByKind, len(autocarga.Kinds))
	require.Len(t, r.Errors, 1)
	assert.Equal(t, "extract", r.Errors[0].Stage)
	assert.Empty(t, r.Fatal)
}

func TestLastReportPDF(t *testing.T) {
	svc := &fakeService{last: &autocarga.RunReport{ID: "run-9", Stats: autocarga.NewRunStats(), State: autocarga.StateCompleted}}
	resp := call(t, newAutoCargaApp(svc), http.MethodGet, "/api/autocarga/runs/last/pdf", pkgjwt.RoleConsulta, "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/pdf", resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "autocarga-run-9.pdf")
	body, _ := io.ReadAll(resp.Body)
	assert.True(t, strings.HasPrefix(string(body), "%PDF"))
}

// ── mantenimiento ─────────────────────────────────────────────────────────────

func TestRelink(t *testing.T) {
	svc := &fakeService{}
	app := newAutoCargaApp(svc)

	resp := call(t, app, http.MethodPost, "/api/autocarga/relink", pkgjwt.RoleContador, `{"since_days":30,"only_unpaid":true,"limit":50}`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	st := decode[dto.StatsResponse](t, resp)
	assert.Equal(t, 2, st.ByKind["voucher"].Linked)

	require.Len(t, svc.relinked, 1)
	scope := svc.relinked[0]
	assert.True(t, scope.OnlyUnpaid)
	assert.Equal(t, 50, scope.Limit)
	require.NotNil(t, scope.Since)
	assert.WithinDuration(t, time.Now().AddDate(0, 0, -30), *scope.Since, time.Minute)

	resp = call(t, app, http.MethodPost, "/api/autocarga/relink", pkgjwt.RoleContador, "")
	resp.Body.Close()
	require.Len(t, svc.relinked, 2)
	assert.Nil(t, svc.relinked[1].Since, "sin since_days el servicio aplica su ventana")

	resp = call(t, app, http.MethodPost, "/api/autocarga/relink", pkgjwt.RoleContador, `{"since_days":0,"limit":-1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestRelink_CorridaEnCurso(t *testing.T) {
	svc := &fakeService{relinkErr: domain.ErrRunInProgress}
	resp := call(t, newAutoCargaApp(svc), http.MethodPost, "/api/autocarga/relink", pkgjwt.RoleAdmin, "")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp.Body.Close()
}

func TestRepairAmountWords(t *testing.T) {
	svc := &fakeService{repaired: 3}
	resp := call(t, newAutoCargaApp(svc), http.MethodPost, "/api/autocarga/amount-words/repair", pkgjwt.RoleAdmin, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, decode[dto.RepairResponse](t, resp).Updated)
}
