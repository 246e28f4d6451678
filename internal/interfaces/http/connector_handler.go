package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/xsist-conector/internal/application/connector"
	"github.com/jhoicas/xsist-conector/internal/application/dto"
)

// ConnectorHandler estado, certificado y descarga por chave.
type ConnectorHandler struct {
	svc *connector.Service
}

// NewConnectorHandler construye el handler.
func NewConnectorHandler(svc *connector.Service) *ConnectorHandler {
	return &ConnectorHandler{svc: svc}
}

// Ping GET /ping
func (h *ConnectorHandler) Ping(c *fiber.Ctx) error {
	return c.JSON(h.svc.Ping())
}

// Status GET /status
func (h *ConnectorHandler) Status(c *fiber.Ctx) error {
	st, err := h.svc.Status(c.UserContext())
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(st)
}

// VerifyStored GET /cert/verify
func (h *ConnectorHandler) VerifyStored(c *fiber.Ctx) error {
	return c.JSON(h.svc.VerifyStored())
}

// VerifyUpload POST /cert/verify
func (h *ConnectorHandler) VerifyUpload(c *fiber.Ctx) error {
	var in dto.VerifyCertRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return c.JSON(h.svc.VerifyUpload(in))
}

// ConfigureCert POST /config/cert
func (h *ConnectorHandler) ConfigureCert(c *fiber.Ctx) error {
	var in dto.ConfigCertRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	return c.JSON(h.svc.ConfigureCert(in))
}

// Download POST /download. Los resultados de la SEFAZ (incluidos rechazos)
// responden 200 con ok=false; solo un cuerpo ilegible es 400.
func (h *ConnectorHandler) Download(c *fiber.Ctx) error {
	var in dto.DownloadRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	in.ClientID = GetClientID(c)
	return c.JSON(h.svc.Download(c.UserContext(), in))
}

