package dto

import "time"

// StartRunRequest cuerpo opcional de POST /api/autocarga/runs. Los campos
// ausentes toman la configuración del servidor.
type StartRunRequest struct {
	Folder      string `json:"folder" validate:"omitempty,max=1024"`
	DaysBack    *int   `json:"days_back" validate:"omitempty,min=0,max=3650"`
	IncludeCFDI *bool  `json:"include_cfdi"`
}

// RelinkRequest cuerpo opcional de POST /api/autocarga/relink.
type RelinkRequest struct {
	SinceDays  *int `json:"since_days" validate:"omitempty,min=1,max=3650"`
	OnlyUnpaid bool `json:"only_unpaid"`
	Limit      int  `json:"limit" validate:"min=0,max=10000"`
}

// ProgressResponse avance de la corrida en curso.
type ProgressResponse struct {
	Running   bool   `json:"running"`
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	State     string `json:"state"`
}

// CountersResponse contadores de un tipo de entidad.
type CountersResponse struct {
	Created          int `json:"created"`
	Linked           int `json:"linked"`
	SkippedDuplicate int `json:"skipped_duplicate"`
	Unmatched        int `json:"unmatched"`
	Errored          int `json:"errored"`
}

// StatsResponse contadores de una corrida.
type StatsResponse struct {
	ByKind          map[string]CountersResponse `json:"by_kind"`
	FilesScanned    int                         `json:"files_scanned"`
	FilesSkipped    int                         `json:"files_skipped"`
	FilesErrored    int                         `json:"files_errored"`
	CodesBackfilled int                         `json:"codes_backfilled"`
	CodeConflicts   int                         `json:"code_conflicts"`
	Ambiguous       int                         `json:"ambiguous"`
}

// FileErrorResponse error de un archivo.
type FileErrorResponse struct {
	File    string `json:"file"`
	Stage   string `json:"stage"`
	Message string `json:"message"`
}

// RunReportResponse resumen de la última corrida.
type RunReportResponse struct {
	ID         string              `json:"id"`
	Folder     string              `json:"folder"`
	DaysBack   int                 `json:"days_back"`
	DryRun     bool                `json:"dry_run"`
	State      string              `json:"state"`
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
	Fatal      string              `json:"fatal,omitempty"`
	Stats      StatsResponse       `json:"stats"`
	Errors     []FileErrorResponse `json:"errors"`
}

// RepairResponse resultado de la corrección de importes con letra.
type RepairResponse struct {
	Updated int `json:"updated"`
}
