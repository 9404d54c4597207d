package main

import (
	"github.com/spf13/cobra"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "autocarga",
	Short: "Carga automática de vales, órdenes de compra y CFDI",
	Long: `autocarga lee los PDF de vales y órdenes de compra (y opcionalmente los
XML CFDI 4.0) de una carpeta, resuelve proveedor y factura, y guarda todo
en PostgreSQL sin duplicar.

La configuración sale de variables de entorno o de .env (DB_*, AUTOCARGA_*).`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "", "nivel de log (trace, debug, info, warn, error)")
}
