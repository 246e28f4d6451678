package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/xsist-conector/internal/application/connector"
	"github.com/jhoicas/xsist-conector/internal/application/dto"
)

// DocumentsHandler historial, XML guardados y PDF simplificado.
type DocumentsHandler struct {
	svc *connector.Service
}

// NewDocumentsHandler construye el handler.
func NewDocumentsHandler(svc *connector.Service) *DocumentsHandler {
	return &DocumentsHandler{svc: svc}
}

// RenderPDF POST /documentos/pdf
func (h *DocumentsHandler) RenderPDF(c *fiber.Ctx) error {
	var in dto.RenderPDFRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	pdf, err := h.svc.RenderPDF(c.UserContext(), in.XML)
	if err != nil {
		return writeError(c, err)
	}
	return sendPDF(c, pdf, "documento")
}

// History GET /historial?limit=50
func (h *DocumentsHandler) History(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	list, err := h.svc.History(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// List GET /documentos?limit=50
func (h *DocumentsHandler) List(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "50"))
	list, err := h.svc.Documents(c.UserContext(), limit)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(list)
}

// GetByID GET /documentos/:id
func (h *DocumentsHandler) GetByID(c *fiber.Ctx) error {
	doc, err := h.svc.Document(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(doc)
}

// GetPDF GET /documentos/:id/pdf
func (h *DocumentsHandler) GetPDF(c *fiber.Ctx) error {
	pdf, key, err := h.svc.RenderStoredPDF(c.UserContext(), c.Params("id"))
	if err != nil {
		return writeError(c, err)
	}
	return sendPDF(c, pdf, key)
}

func sendPDF(c *fiber.Ctx, pdf []byte, name string) error {
	c.Set(fiber.HeaderContentType, "application/pdf")
	c.Set(fiber.HeaderContentDisposition, `inline; filename="`+name+`.pdf"`)
	return c.Send(pdf)
}
