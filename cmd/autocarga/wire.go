package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/matching"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/cfdi"
	infrapdf "github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/pdf"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/postgres"
	"github.com/GerzaFM/Autosol2-sub000/pkg/config"
	"github.com/GerzaFM/Autosol2-sub000/pkg/logger"
)

// env dependencias compartidas por los subcomandos.
type env struct {
	cfg  *config.Config
	log  *logger.Logger
	pool *pgxpool.Pool
}

// setup carga configuración y logger y abre el pool. El log va a stderr para
// no mezclarse con el reporte.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	level := cfg.App.LogLevel
	if l, _ := cmd.Flags().GetString("log-level"); l != "" {
		level = l
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: level, Output: os.Stderr})

	pool, err := postgres.NewPool(cmd.Context(), cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}
	return &env{cfg: cfg, log: log, pool: pool}, nil
}

func (e *env) close() { e.pool.Close() }

// service arma el orquestador sobre el TxRunner indicado.
func (e *env) service(tx autocarga.TxRunner) *autocarga.Service {
	ac := e.cfg.AutoCarga
	return autocarga.New(
		tx,
		infrapdf.NewExtractor(e.log.WithComponent("extractor")),
		cfdi.NewParser(),
		matching.NewProviderMatcher(matching.ProviderMatcherConfig{NameRatio: ac.NameRatio}, e.log.WithComponent("matcher")),
		matching.NewInvoiceMatcher(ac.MinPartialLength, e.log.WithComponent("matcher")),
		autocarga.Settings{
			Folder:          ac.Folder,
			DaysBack:        ac.DaysBack,
			IncludeCFDI:     ac.IncludeCFDI,
			AmountTolerance: ac.AmountTolerance,
			CandidateDays:   ac.CandidateDays,
		},
		e.log.WithComponent("orchestrator"),
	)
}

// migrate aplica las migraciones pendientes.
func (e *env) migrate(ctx context.Context) error {
	n, err := postgres.Migrate(ctx, e.pool, e.log.WithComponent("migrate"))
	if err != nil {
		return err
	}
	e.log.Info().Int("applied", n).Msg("migraciones aplicadas")
	return nil
}
