package entity

import "time"

// Estados de un intento de descarga en el historial.
const (
	DownloadStatusPending  = "PENDIENTE"     // Registrado antes de consultar la SEFAZ
	DownloadStatusOK       = "OK"            // XML recuperado (cStat 138)
	DownloadStatusNotFound = "NO_ENCONTRADO" // cStat 137
	DownloadStatusRejected = "RECHAZADO"     // Cualquier otro cStat
	DownloadStatusError    = "ERROR"         // Validación, transporte o parseo
)

// DownloadEvent registro de auditoría de una consulta por chave.
type DownloadEvent struct {
	ID        string
	Key       string // chave de 44 dígitos tal como se consultó
	Family    string // NFE / CTE
	Status    string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}
