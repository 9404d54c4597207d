package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound = errors.New("recurso no encontrado")

	// Taxonomía del pipeline de autocarga.
	ErrUnreadableDocument  = errors.New("documento ilegible")
	ErrMalformedDocument   = errors.New("documento con esquema inválido")
	ErrAmbiguousMatch      = errors.New("coincidencia ambigua")
	ErrDuplicateNaturalKey = errors.New("llave natural duplicada")
	ErrPersistenceConflict = errors.New("conflicto de persistencia")
	ErrConfiguration       = errors.New("configuración inválida")
	ErrRunInProgress       = errors.New("ya hay una autocarga en curso")
)
