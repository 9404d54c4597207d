package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/pkg/jwt"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	AutoCarga AutoCargaService
	Renderer  autocarga.ReportRenderer
	JWTSecret string
	Log       zerolog.Logger
}

// Router registra las rutas de la API.
func Router(app *fiber.App, deps RouterDeps) {
	api := app.Group("/api")

	// Rutas protegidas (requieren Bearer Token)
	protected := api.Group("/", AuthMiddleware(deps.JWTSecret))

	h := NewAutoCargaHandler(deps.AutoCarga, deps.Renderer, deps.Log)
	ac := protected.Group("/autocarga")

	// Consulta: cualquier rol
	ac.Get("/runs/progress", h.Progress)
	ac.Get("/runs/last", h.LastReport)
	ac.Get("/runs/last/pdf", h.LastReportPDF)

	// Escritura: admin y contador
	writers := RequireRole(jwt.RoleAdmin, jwt.RoleContador)
	ac.Post("/runs", writers, h.StartRun)
	ac.Post("/relink", writers, h.Relink)
	ac.Post("/amount-words/repair", writers, h.RepairAmountWords)
}
