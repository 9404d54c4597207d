package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/GerzaFM/Autosol2-sub000/internal/application/autocarga"
	"github.com/GerzaFM/Autosol2-sub000/internal/domain/repository"
	"github.com/GerzaFM/Autosol2-sub000/internal/infrastructure/postgres"
	"github.com/GerzaFM/Autosol2-sub000/pkg/config"
	"github.com/GerzaFM/Autosol2-sub000/pkg/jwt"
)

var relinkCmd = &cobra.Command{
	Use:   "relink",
	Short: "Reintenta ligar vales y órdenes sin factura",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		sinceDays, _ := cmd.Flags().GetInt("since-days")
		onlyUnpaid, _ := cmd.Flags().GetBool("only-unpaid")
		scope := repository.InvoiceScope{OnlyUnpaid: onlyUnpaid}
		if sinceDays > 0 {
			since := time.Now().AddDate(0, 0, -sinceDays)
			scope.Since = &since
		}

		stats, err := e.service(postgres.NewTxRunner(e.pool)).Relink(cmd.Context(), scope)
		if err != nil {
			return err
		}
		for _, k := range []autocarga.Kind{autocarga.KindVoucher, autocarga.KindPurchaseOrder} {
			c := stats.Of(k)
			fmt.Fprintf(cmd.OutOrStdout(), "%-15s ligados=%d sin_liga=%d errores=%d\n", k, c.Linked, c.Unmatched, c.Errored)
		}
		return nil
	},
}

var repairWordsCmd = &cobra.Command{
	Use:   "repair-words",
	Short: "Separa las palabras del importe con letra guardado",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		n, err := e.service(postgres.NewTxRunner(e.pool)).RepairAmountWords(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "registros corregidos: %d\n", n)
		return nil
	},
}

var importCFDICmd = &cobra.Command{
	Use:   "import-cfdi <archivo.xml>",
	Short: "Importa un solo XML CFDI 4.0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()

		res, err := e.service(postgres.NewTxRunner(e.pool)).ImportCFDI(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		state := "duplicada"
		if res.Created {
			state = "creada"
		}
		fmt.Fprintf(cmd.OutOrStdout(), "factura %s %s (proveedor %s)\n", res.InvoiceID, state, res.ProviderID)
		return nil
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Aplica las migraciones pendientes",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup(cmd)
		if err != nil {
			return err
		}
		defer e.close()
		return e.migrate(cmd.Context())
	},
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emite un JWT para la API de autocarga",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}

		user, _ := cmd.Flags().GetString("user")
		role, _ := cmd.Flags().GetString("role")
		switch role {
		case jwt.RoleAdmin, jwt.RoleContador, jwt.RoleConsulta:
		default:
			return fmt.Errorf("rol desconocido %q", role)
		}
		tok, err := jwt.Generate(cfg.JWT.Secret, user, role, cfg.JWT.Issuer, cfg.JWT.Expiration)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(relinkCmd, repairWordsCmd, importCFDICmd, migrateCmd, tokenCmd)

	relinkCmd.Flags().Int("since-days", 0, "facturas emitidas en los últimos N días (default: AUTOCARGA_CANDIDATE_DAYS)")
	relinkCmd.Flags().Bool("only-unpaid", false, "solo facturas sin pagar")
	tokenCmd.Flags().String("user", "", "identificador del usuario")
	_ = tokenCmd.MarkFlagRequired("user")
	tokenCmd.Flags().String("role", jwt.RoleContador, "rol del token (admin, contador, consulta)")
}
