package http

import (
	"encoding/base64"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/xsist-conector/internal/application/dto"
	"github.com/jhoicas/xsist-conector/internal/application/keys"
)

// KeysHandler extracción y detección de chaves.
type KeysHandler struct {
	uc *keys.UseCase
}

// NewKeysHandler construye el handler.
func NewKeysHandler(uc *keys.UseCase) *KeysHandler {
	return &KeysHandler{uc: uc}
}

// Extract POST /chaves/extraer
// Acepta JSON {text, base64} o multipart con el campo "arquivo".
func (h *KeysHandler) Extract(c *fiber.Ctx) error {
	var (
		res *keys.Extraction
		err error
	)
	if fh, ferr := c.FormFile("arquivo"); ferr == nil {
		f, oerr := fh.Open()
		if oerr != nil {
			return badBody(c)
		}
		defer f.Close()
		res, err = h.uc.ExtractFromReader(f)
	} else {
		var in dto.ExtractKeysRequest
		if err := c.BodyParser(&in); err != nil {
			return badBody(c)
		}
		raw := []byte(in.Text)
		if in.Base64 {
			if raw, err = base64.StdEncoding.DecodeString(in.Text); err != nil {
				return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: "text no es base64 válido"})
			}
		}
		res, err = h.uc.ExtractFromBytes(raw)
	}
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()})
	}

	out := dto.ExtractKeysResponse{Total: len(res.Keys), Encoding: res.Encoding, Chaves: make([]string, 0, len(res.Keys))}
	for _, k := range res.Keys {
		out.Chaves = append(out.Chaves, k.String())
	}
	return c.JSON(out)
}

// Detect POST /chaves/detectar
func (h *KeysHandler) Detect(c *fiber.Ctx) error {
	var in dto.DetectKeyRequest
	if err := c.BodyParser(&in); err != nil {
		return badBody(c)
	}
	d := h.uc.Detect(in.XML)
	return c.JSON(dto.DetectKeyResponse{Found: d.Found, Chave: d.Key.String(), Tipo: string(d.Family)})
}
