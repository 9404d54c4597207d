package autocarga

import (
	"fmt"
	"strings"
	"time"
)

// State etapa de la corrida.
type State string

const (
	StateIdle        State = "idle"
	StateScanning    State = "scanning"
	StateExtracting  State = "extracting"
	StateNormalizing State = "normalizing"
	StateMatching    State = "matching"
	StatePersisting  State = "persisting"
	StateReporting   State = "reporting"
	StateCompleted   State = "completed"
	StateAborted     State = "aborted"
)

// Terminal informa si la corrida ya terminó.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateAborted
}

// Kind tipo de entidad contabilizada.
type Kind string

const (
	KindVoucher       Kind = "voucher"
	KindPurchaseOrder Kind = "purchase_order"
	KindProvider      Kind = "provider"
	KindInvoice       Kind = "invoice"
)

// Kinds orden fijo en el que se reportan los contadores.
var Kinds = []Kind{KindVoucher, KindPurchaseOrder, KindProvider, KindInvoice}

// Counters resultado por tipo de entidad.
type Counters struct {
	Created          int `json:"created"`
	Linked           int `json:"linked"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Unmatched        int `json:"unmatched"`
	Errored          int `json:"errored"`
}

// RunStats contadores de una corrida; viven solo en memoria.
type RunStats struct {
	ByKind          map[Kind]*Counters `json:"by_kind"`
	FilesScanned    int                `json:"files_scanned"`
	FilesSkipped    int                `json:"files_skipped"`
	FilesErrored    int                `json:"files_errored"` // incluye los PDF sin tipo reconocible
	CodesBackfilled int                `json:"codes_backfilled"`
	CodeConflicts   int                `json:"code_conflicts"`
	Ambiguous       int                `json:"ambiguous"`
}

// NewRunStats devuelve contadores en cero para todos los tipos.
func NewRunStats() *RunStats {
	s := &RunStats{ByKind: make(map[Kind]*Counters, len(Kinds))}
	for _, k := range Kinds {
		s.ByKind[k] = &Counters{}
	}
	return s
}

// Of devuelve los contadores de un tipo.
func (s *RunStats) Of(k Kind) *Counters {
	c, ok := s.ByKind[k]
	if !ok {
		c = &Counters{}
		s.ByKind[k] = c
	}
	return c
}

// Stage etapa en la que falló un archivo.
type Stage string

const (
	StageScan    Stage = "scan"
	StageExtract Stage = "extract"
	StageParse   Stage = "parse"
	StageMatch   Stage = "match"
	StagePersist Stage = "persist"
)

// FileError error de un archivo. No detiene la corrida.
type FileError struct {
	File  string
	Stage Stage
	Err   error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s [%s]: %v", e.File, e.Stage, e.Err)
}

func (e *FileError) Unwrap() error { return e.Err }

// RunReport resumen de una corrida.
type RunReport struct {
	ID         string
	Folder     string
	DaysBack   int
	DryRun     bool
	State      State
	StartedAt  time.Time
	FinishedAt time.Time
	Stats      *RunStats
	Errors     []*FileError
	// Fatal error que abortó la corrida (configuración); nil si terminó.
	Fatal error
}

// Duration de la corrida.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Text resumen en texto plano.
func (r *RunReport) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Autocarga %s (%s)\n", r.ID, r.State)
	fmt.Fprintf(&b, "Carpeta: %s  Días: %d", r.Folder, r.DaysBack)
	if r.DryRun {
		b.WriteString("  [simulación]")
	}
	b.WriteString("\n")
	if r.Fatal != nil {
		fmt.Fprintf(&b, "Abortada: %v\n", r.Fatal)
		return b.String()
	}
	s := r.Stats
	fmt.Fprintf(&b, "Archivos: %d revisados, %d omitidos, %d con error\n", s.FilesScanned, s.FilesSkipped, s.FilesErrored)
	fmt.Fprintf(&b, "%-16s %8s %8s %10s %10s %8s\n", "tipo", "creados", "ligados", "duplicados", "sin liga", "errores")
	for _, k := range Kinds {
		c := s.Of(k)
		fmt.Fprintf(&b, "%-16s %8d %8d %10d %10d %8d\n", k, c.Created, c.Linked, c.SkippedDuplicate, c.Unmatched, c.Errored)
	}
	fmt.Fprintf(&b, "Códigos asignados: %d  Conflictos de código: %d  Ambiguas: %d\n",
		s.CodesBackfilled, s.CodeConflicts, s.Ambiguous)
	if len(r.Errors) > 0 {
		b.WriteString("Errores:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(&b, "  %s\n", e.Error())
		}
	}
	return b.String()
}
