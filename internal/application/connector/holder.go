package connector

import (
	"sync/atomic"

	"github.com/jhoicas/xsist-conector/internal/application/retrieval"
)

// CredentialHolder guarda la CertificateConfig vigente. Replace publica una
// instancia nueva; las consultas en curso conservan la que leyeron al empezar.
type CredentialHolder struct {
	current atomic.Pointer[retrieval.CertificateConfig]
}

// NewCredentialHolder holder vacío.
func NewCredentialHolder() *CredentialHolder {
	return &CredentialHolder{}
}

// Current devuelve la configuración publicada o nil.
func (h *CredentialHolder) Current() *retrieval.CertificateConfig {
	return h.current.Load()
}

// Replace publica cfg.
func (h *CredentialHolder) Replace(cfg *retrieval.CertificateConfig) {
	h.current.Store(cfg)
}

// Clear descarta la configuración publicada.
func (h *CredentialHolder) Clear() {
	h.current.Store(nil)
}
