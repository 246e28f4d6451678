package domain

import "errors"

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound          = errors.New("recurso no encontrado")
	ErrInvalidInput      = errors.New("entrada inválida")
	ErrUnauthorized      = errors.New("no autorizado")
	ErrNotConfigured     = errors.New("componente no configurado")
	ErrUnsupportedFamily = errors.New("familia de documento no soportada")
	ErrCredential        = errors.New("credencial inválida o ausente")
)
