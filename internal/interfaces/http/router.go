package http

import (
	nethttp "net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/jhoicas/xsist-conector/internal/application/connector"
	"github.com/jhoicas/xsist-conector/internal/application/keys"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Connector      *connector.Service
	Keys           *keys.UseCase
	MetricsHandler nethttp.Handler // nil = sin /metrics
	AuthSecret     string          // vacío = rutas abiertas
}

// Router registra las rutas de la API local.
func Router(app *fiber.App, deps RouterDeps) {
	connectorHandler := NewConnectorHandler(deps.Connector)
	keysHandler := NewKeysHandler(deps.Keys)
	docsHandler := NewDocumentsHandler(deps.Connector)

	// Público
	app.Get("/ping", connectorHandler.Ping)
	app.Get("/status", connectorHandler.Status)
	app.Post("/chaves/extraer", keysHandler.Extract)
	app.Post("/chaves/detectar", keysHandler.Detect)
	if deps.MetricsHandler != nil {
		app.Get("/metrics", adaptor.HTTPHandler(deps.MetricsHandler))
	}

	// Rutas protegidas (Bearer Token si HTTP_AUTH_SECRET está definido). El
	// middleware va por ruta: una ruta inexistente responde 404, no 401.
	auth := AuthMiddleware(deps.AuthSecret)
	app.Get("/cert/verify", auth, connectorHandler.VerifyStored)
	app.Post("/cert/verify", auth, connectorHandler.VerifyUpload)
	app.Post("/config/cert", auth, connectorHandler.ConfigureCert)
	app.Post("/download", auth, connectorHandler.Download)

	app.Post("/documentos/pdf", auth, docsHandler.RenderPDF)
	app.Get("/historial", auth, docsHandler.History)
	app.Get("/documentos", auth, docsHandler.List)
	app.Get("/documentos/:id", auth, docsHandler.GetByID)
	app.Get("/documentos/:id/pdf", auth, docsHandler.GetPDF)
}
