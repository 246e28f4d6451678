// Package retrieval compone builder, transporte y parser en la consulta de un
// documento por chave (NFeDistribuicaoDFe / consChNFe) y clasifica el resultado.
package retrieval

import (
	"context"
	"encoding/xml"
	"errors"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	"github.com/jhoicas/xsist-conector/pkg/logger"
	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

const (
	tracerName = "github.com/jhoicas/xsist-conector/retrieval"

	// excerptLen tamaño del extracto del cuerpo cuando un no-2xx no trae Fault.
	excerptLen = 400

	msgCTeNotSupported = "CT-e aún no soportado en este conector (solo NF-e)."
)

// Endpoints URLs del servicio de distribución por ambiente.
type Endpoints struct {
	Production string
	Staging    string
}

// DefaultEndpoints Ambiente Nacional.
func DefaultEndpoints() Endpoints {
	return Endpoints{
		Production: pkgsefaz.NFeDistURLProduction,
		Staging:    pkgsefaz.NFeDistURLStaging,
	}
}

func (e Endpoints) forEnv(env domsefaz.Environment) string {
	if env == domsefaz.Staging {
		return e.Staging
	}
	return e.Production
}

// Orchestrator ejecuta Validating → BuildingPayload → Transmitting →
// ParsingEnvelope → ParsingResult → Classifying. Sin estado propio: seguro
// para uso concurrente. No reintenta.
type Orchestrator struct {
	builder   PayloadBuilder
	transport Transport
	parser    ResponseParser
	endpoints Endpoints
	log       *logger.Logger
	tracer    trace.Tracer
}

// NewOrchestrator construye el orquestador. log nil descarta los logs; URLs
// vacías en endpoints toman las del Ambiente Nacional.
func NewOrchestrator(builder PayloadBuilder, transport Transport, parser ResponseParser, endpoints Endpoints, log *logger.Logger) *Orchestrator {
	def := DefaultEndpoints()
	if endpoints.Production == "" {
		endpoints.Production = def.Production
	}
	if endpoints.Staging == "" {
		endpoints.Staging = def.Staging
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		builder:   builder,
		transport: transport,
		parser:    parser,
		endpoints: endpoints,
		log:       log.Component("retrieval"),
		tracer:    otel.Tracer(tracerName),
	}
}

// Fetch consulta un documento por chave. Siempre devuelve exactamente una
// variante de Outcome; los errores de cada etapa se traducen aquí.
func (o *Orchestrator) Fetch(ctx context.Context, key string, family domsefaz.DocumentFamily, cfg *CertificateConfig) Outcome {
	start := time.Now()
	ctx, span := o.tracer.Start(ctx, "retrieval.Fetch",
		trace.WithAttributes(attribute.String("sefaz.family", string(family))))
	defer span.End()

	out := o.fetch(ctx, key, family, cfg)

	span.SetAttributes(attribute.String("retrieval.outcome", out.Kind()))
	if _, ok := out.(Success); !ok {
		if _, nf := out.(NotFound); !nf {
			span.SetStatus(codes.Error, out.Kind())
		}
	}
	o.log.Info().
		Str("family", string(family)).
		Str("outcome", out.Kind()).
		Dur("duration", time.Since(start)).
		Msg("consulta por chave finalizada")
	return out
}

func (o *Orchestrator) fetch(ctx context.Context, rawKey string, family domsefaz.DocumentFamily, cfg *CertificateConfig) Outcome {
	// ── Validating ──────────────────────────────────────────────────────────
	key, taxID, verr := o.validate(ctx, rawKey, family, cfg)
	if verr != nil {
		return *verr
	}
	log := o.log.With().Str("chave", key.String()).Str("family", string(family)).Logger()

	// ── BuildingPayload ─────────────────────────────────────────────────────
	_, span := o.tracer.Start(ctx, "retrieval.build")
	payload, err := o.builder.BuildKeyQuery(key.String(), taxID.String(), cfg.Environment)
	endSpan(span, err)
	if err != nil {
		return ValidationError{Reason: "No se pudo armar la consulta: " + err.Error()}
	}

	// ── Transmitting ────────────────────────────────────────────────────────
	tctx, span := o.tracer.Start(ctx, "retrieval.transmit")
	url := o.endpoints.forEnv(cfg.Environment)
	span.SetAttributes(attribute.String("http.url", url))
	resp, err := o.transport.Post(tctx, infsefaz.SOAPRequest{
		URL:        url,
		Action:     pkgsefaz.NFeDistSOAPAction,
		Operation:  xml.Name{Space: pkgsefaz.NFeDistWSDLNamespace, Local: pkgsefaz.NFeDistOperation},
		MessageTag: pkgsefaz.NFeDistMessageTag,
		Payload:    payload,
	}, cfg.Certificate)
	if err != nil {
		endSpan(span, err)
		log.Warn().Err(err).Msg("falla de transporte")
		return transportOutcome(err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if !resp.OK() {
		endSpan(span, errors.New("http no-2xx"))
		log.Warn().Int("http_status", resp.StatusCode).Msg("la SEFAZ respondió con status no-2xx")
		return TransportError{Reason: httpFailureReason(resp), HTTPStatus: resp.StatusCode}
	}
	endSpan(span, nil)

	// ── ParsingEnvelope ─────────────────────────────────────────────────────
	_, span = o.tracer.Start(ctx, "retrieval.parse_envelope")
	inner, err := o.parser.ParseEnvelope(resp.Body)
	endSpan(span, err)
	if err != nil {
		log.Warn().Err(err).Msg("sobre SOAP inesperado")
		return ParseError{Reason: "Respuesta SOAP inesperada: " + err.Error()}
	}

	// ── ParsingResult ───────────────────────────────────────────────────────
	_, span = o.tracer.Start(ctx, "retrieval.parse_result")
	res, err := o.parser.ParseResult(inner)
	endSpan(span, err)
	if err != nil {
		log.Warn().Err(err).Msg("retDistDFeInt inesperado")
		return ParseError{Reason: "Retorno de distribución inesperado: " + err.Error()}
	}

	// ── Classifying ─────────────────────────────────────────────────────────
	_, span = o.tracer.Start(ctx, "retrieval.classify",
		trace.WithAttributes(attribute.String("sefaz.cstat", res.Status)))
	defer span.End()
	log.Debug().Str("cStat", res.Status).Int("docs", len(res.Documents)).Msg("retorno recibido")
	return classify(res, &log)
}

func (o *Orchestrator) validate(ctx context.Context, rawKey string, family domsefaz.DocumentFamily, cfg *CertificateConfig) (domsefaz.AccessKey, domsefaz.TaxID, *ValidationError) {
	_, span := o.tracer.Start(ctx, "retrieval.validate")
	defer span.End()

	fail := func(v *ValidationError) (domsefaz.AccessKey, domsefaz.TaxID, *ValidationError) {
		span.SetStatus(codes.Error, v.Reason)
		return "", "", v
	}

	key, verr := ValidateRequest(rawKey, family)
	if verr != nil {
		return fail(verr)
	}
	if cfg == nil || len(cfg.Certificate.Certificate) == 0 || cfg.Certificate.PrivateKey == nil {
		return fail(&ValidationError{Reason: "Certificado no configurado."})
	}
	taxID, err := domsefaz.ParseTaxID(cfg.TaxID)
	if err != nil {
		return fail(&ValidationError{Reason: "CNPJ del interesado inválido: debe tener 14 dígitos."})
	}
	if !cfg.Environment.Valid() {
		return fail(&ValidationError{Reason: "Ambiente inválido (tpAmb debe ser 1 o 2)."})
	}
	return key, taxID, nil
}

// ValidateRequest valida familia y chave sin mirar la credencial. La familia
// CT-e se rechaza siempre: no hay consulta por chave implementada para ella.
func ValidateRequest(rawKey string, family domsefaz.DocumentFamily) (domsefaz.AccessKey, *ValidationError) {
	switch family {
	case domsefaz.FamilyNFe:
	case domsefaz.FamilyCTe:
		return "", &ValidationError{Reason: msgCTeNotSupported}
	default:
		return "", &ValidationError{Reason: "Tipo de documento desconocido (use NFE o CTE): " + string(family)}
	}
	key, err := domsefaz.ParseAccessKey(rawKey)
	if err != nil {
		return "", &ValidationError{Reason: "Chave inválida: debe tener 44 dígitos."}
	}
	return key, nil
}

// classify 138 → primer documento decodificado; 137 → NotFound; otro → rechazo.
func classify(res *infsefaz.DistributionResult, log *zerolog.Logger) Outcome {
	switch res.Status {
	case pkgsefaz.StatusDocumentsFound:
		var docs []RetrievedDocument
		for _, d := range res.Documents {
			if d.Err != nil {
				log.Warn().Str("nsu", d.NSU).Err(d.Err).Msg("docZip no decodificable")
				continue
			}
			docs = append(docs, RetrievedDocument{NSU: d.NSU, Schema: d.Schema, XML: d.XML})
		}
		if len(docs) == 0 {
			return ParseError{Reason: "cStat 138 sin documentos decodificables"}
		}
		if len(docs) > 1 {
			log.Warn().Int("docs", len(docs)).Msg("la SEFAZ devolvió más de un documento para una sola chave; se usa el primero")
		}
		return Success{Documents: docs[:1], ServerMessage: res.Message, Status: res.Status}
	case pkgsefaz.StatusNoDocuments:
		return NotFound{ServerMessage: res.Message}
	default:
		return ServerRejection{Status: res.Status, ServerMessage: res.Message}
	}
}

func transportOutcome(err error) TransportError {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return TransportError{Reason: "Tiempo de espera agotado con la SEFAZ: " + err.Error()}
	case errors.Is(err, context.Canceled):
		return TransportError{Reason: "Consulta cancelada: " + err.Error()}
	case errors.Is(err, infsefaz.ErrMissingClientCertificate):
		return TransportError{Reason: "Certificado no configurado."}
	}
	return TransportError{Reason: "Error de conexión con la SEFAZ: " + err.Error()}
}

func httpFailureReason(resp *infsefaz.SOAPResponse) string {
	if code, reason, ok := resp.Fault(); ok && (code != "" || reason != "") {
		return strings.TrimSpace(code + " " + reason)
	}
	body := strings.TrimSpace(strings.ToValidUTF8(string(resp.Body), ""))
	if r := []rune(body); len(r) > excerptLen {
		body = string(r[:excerptLen])
	}
	if body == "" {
		return "respuesta vacía"
	}
	return body
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
