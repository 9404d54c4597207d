package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/entity"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/memory"
	infrapdf "github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/pdf"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/postgres"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Procesa la carpeta de autocarga",
	Long: `Escanea la carpeta (solo el primer nivel), procesa primero los XML CFDI y
después los PDF de vales y órdenes de compra, e imprime el resumen.

Con --dry-run los proveedores, todas las facturas (sin importar la ventana de
candidatas), los vales y las órdenes se copian a memoria; la corrida no
escribe en la base y detecta los CFDI duplicados igual que una corrida real.`,
	Example: `  # Carpeta y ventana de la configuración
  autocarga run

  # Carpeta explícita, últimos 3 días, sin CFDI
  autocarga run --folder /srv/escaneos --days-back 3 --no-cfdi

  # Simulación con resumen en PDF
  autocarga run --dry-run --pdf resumen.pdf`,
	RunE: runAutoCarga,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("folder", "", "carpeta a procesar (default: AUTOCARGA_FOLDER)")
	runCmd.Flags().Int("days-back", -1, "solo archivos modificados en los últimos N días; 0 = todos")
	runCmd.Flags().Bool("no-cfdi", false, "ignorar los XML CFDI")
	runCmd.Flags().Bool("dry-run", false, "simular sin escribir en la base")
	runCmd.Flags().String("pdf", "", "guardar el resumen en PDF en esta ruta")
}

func runAutoCarga(cmd *cobra.Command, _ []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.close()
	ctx := cmd.Context()

	folder, _ := cmd.Flags().GetString("folder")
	daysBack, _ := cmd.Flags().GetInt("days-back")
	noCFDI, _ := cmd.Flags().GetBool("no-cfdi")
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	pdfPath, _ := cmd.Flags().GetString("pdf")

	opts := autocarga.RunOptions{Folder: folder, DryRun: dryRun}
	if cmd.Flags().Changed("days-back") {
		opts.DaysBack = &daysBack
	}
	if noCFDI {
		include := false
		opts.IncludeCFDI = &include
	}

	var tx autocarga.TxRunner = postgres.NewTxRunner(e.pool)
	if dryRun {
		store, err := snapshot(ctx, tx)
		if err != nil {
			return fmt.Errorf("copiar datos para simulación: %w", err)
		}
		tx = store
	}

	svc := e.service(tx)
	report, err := svc.Run(ctx, opts, func(processed, total int) {
		e.log.Debug().Int("processed", processed).Int("total", total).Msg("avance")
	})
	if report == nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), report.Text())

	if pdfPath != "" {
		data, err := infrapdf.NewReportGenerator().Render(report)
		if err != nil {
			return fmt.Errorf("generar resumen PDF: %w", err)
		}
		if err := os.WriteFile(pdfPath, data, 0o644); err != nil {
			return fmt.Errorf("guardar resumen PDF: %w", err)
		}
		e.log.Info().Str("path", pdfPath).Msg("resumen PDF guardado")
	}
	return err
}

// snapshot copia proveedores, facturas, vales y órdenes a un store en memoria
// para correr sin escribir en la base. Las facturas se copian completas: la
// llave natural de un CFDI puede coincidir con una factura fuera de la ventana
// de candidatas.
func snapshot(ctx context.Context, src autocarga.TxRunner) (*memory.Store, error) {
	var (
		providers []*entity.Provider
		invoices  []*entity.Invoice
		vouchers  []*entity.Voucher
		orders    []*entity.PurchaseOrder
	)
	err := src.RunInTx(ctx, func(r autocarga.Repositories) error {
		var err error
		if providers, err = r.Providers.ListAll(ctx); err != nil {
			return err
		}
		if invoices, err = r.Invoices.FindCandidates(ctx, repository.InvoiceScope{}); err != nil {
			return err
		}
		if vouchers, err = r.Vouchers.ListAll(ctx); err != nil {
			return err
		}
		orders, err = r.PurchaseOrders.ListAll(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	store := memory.NewStore()
	err = store.RunInTx(ctx, func(r autocarga.Repositories) error {
		for _, p := range providers {
			if err := r.Providers.Create(ctx, p); err != nil {
				return err
			}
		}
		for _, inv := range invoices {
			if err := r.Invoices.Create(ctx, inv); err != nil {
				return err
			}
		}
		for _, v := range vouchers {
			if err := r.Vouchers.Create(ctx, v); err != nil {
				return err
			}
		}
		for _, o := range orders {
			if err := r.PurchaseOrders.Create(ctx, o); err != nil {
				return err
			}
		}
		return nil
	})
	return store, err
}
