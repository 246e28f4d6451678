// Package connector casos de uso de la API local: configuración del
// certificado, descarga por chave con caché e historial, y PDF simplificado.
package connector

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/jhoicas/xsist-conector/internal/application/dto"
	"github.com/jhoicas/xsist-conector/internal/application/retrieval"
	"github.com/jhoicas/xsist-conector/internal/domain"
	"github.com/jhoicas/xsist-conector/internal/domain/entity"
	"github.com/jhoicas/xsist-conector/internal/domain/repository"
	domsefaz "github.com/jhoicas/xsist-conector/internal/domain/sefaz"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/localstore"
	"github.com/jhoicas/xsist-conector/internal/infrastructure/metrics"
	infsefaz "github.com/jhoicas/xsist-conector/internal/infrastructure/sefaz"
	"github.com/jhoicas/xsist-conector/pkg/logger"
	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

const (
	// ResultCredential resultado de una descarga que no llegó a consultar por
	// falta de certificado utilizable.
	ResultCredential = "CREDENCIAL"

	defaultFetchTimeout = 90 * time.Second

	msgPing          = "Conector local en ejecución"
	msgCertSaved     = "Certificado guardado y validado en el conector local."
	msgNoCert        = "Todavía no hay cert.pfx guardado en el conector."
	msgNoPassword    = "No hay contraseña guardada en el conector."
	msgPasswordEmpty = "La contraseña del certificado es obligatoria."
	msgBadArchive    = "Archivo .pfx inválido (base64 ilegible)."
	msgFromCache     = "XML recuperado (caché local)."
)

// ── Puertos ──────────────────────────────────────────────────────────────────

// Fetcher consulta un documento por chave (retrieval.Orchestrator).
type Fetcher interface {
	Fetch(ctx context.Context, key string, family domsefaz.DocumentFamily, cfg *retrieval.CertificateConfig) retrieval.Outcome
}

// SettingsStore configuración persistida del conector (localstore.Store).
type SettingsStore interface {
	Load() (*localstore.Settings, error)
	HasCertificate() bool
	ReadCertificate() ([]byte, error)
	SaveCertificate(archive []byte, st localstore.Settings) (*localstore.Settings, error)
}

// DocumentCache caché de XML recuperados (cache.DocumentCache).
type DocumentCache interface {
	Enabled() bool
	Get(ctx context.Context, family, key string) (string, bool, error)
	Set(ctx context.Context, family, key, xml string) error
	Invalidate(ctx context.Context, family, key string) error
	Health(ctx context.Context) error
}

// Renderer convierte un XML en DANFE/DACTE simplificado.
type Renderer interface {
	Render(ctx context.Context, xmlText string) ([]byte, error)
}

// Deps dependencias del servicio. Cache, Events y Documents son opcionales.
// FetchTimeout acota la consulta compartida por descargas concurrentes de la
// misma chave; 0 usa defaultFetchTimeout.
type Deps struct {
	Fetcher      Fetcher
	FetchTimeout time.Duration
	Store        SettingsStore
	Holder       *CredentialHolder
	Cache        DocumentCache
	Events       repository.DownloadEventRepository
	Documents    repository.XMLDocumentRepository
	Renderer     Renderer
	Metrics      *metrics.Metrics
	Log          *logger.Logger
}

// Service casos de uso del conector.
type Service struct {
	fetcher   Fetcher
	store     SettingsStore
	holder    *CredentialHolder
	cache     DocumentCache
	events    repository.DownloadEventRepository
	documents repository.XMLDocumentRepository
	renderer  Renderer
	metrics   *metrics.Metrics
	log       *logger.Logger
	timeout   time.Duration
	inflight  singleflight.Group
}

// NewService construye el servicio.
func NewService(d Deps) *Service {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.Holder == nil {
		d.Holder = NewCredentialHolder()
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = defaultFetchTimeout
	}
	return &Service{
		fetcher:   d.Fetcher,
		store:     d.Store,
		holder:    d.Holder,
		cache:     d.Cache,
		events:    d.Events,
		documents: d.Documents,
		renderer:  d.Renderer,
		metrics:   d.Metrics,
		log:       d.Log.Component("connector"),
		timeout:   d.FetchTimeout,
	}
}

// HistoryEnabled indica si hay base de datos para historial y documentos.
func (s *Service) HistoryEnabled() bool { return s.events != nil && s.documents != nil }

// CacheEnabled indica si hay caché configurada.
func (s *Service) CacheEnabled() bool { return s.cache != nil && s.cache.Enabled() }

// ── Estado y certificado ─────────────────────────────────────────────────────

// Ping confirma que el conector responde.
func (s *Service) Ping() *dto.MessageResponse {
	return &dto.MessageResponse{OK: true, Msg: msgPing}
}

// Status informa qué está configurado, nunca los valores.
func (s *Service) Status(ctx context.Context) (*dto.StatusResponse, error) {
	st, err := s.store.Load()
	if err != nil {
		return nil, err
	}
	cacheOK := false
	if s.CacheEnabled() {
		if err := s.cache.Health(ctx); err != nil {
			s.log.Warn().Err(err).Msg("caché sin respuesta")
		} else {
			cacheOK = true
		}
	}
	return &dto.StatusResponse{
		OK:          true,
		HasCert:     s.store.HasCertificate(),
		HasPassword: st.HasPassword(),
		HasCNPJ:     st.HasCNPJ(),
		TpAmb:       st.TpAmb,
		Version:     st.Version,
		CertLoaded:  s.holder.Current() != nil,
		History:     s.HistoryEnabled(),
		Cache:       s.CacheEnabled(),
		CacheOK:     cacheOK,
	}, nil
}

// VerifyStored verifica el cert.pfx y la contraseña guardados.
func (s *Service) VerifyStored() *dto.MessageResponse {
	st, err := s.store.Load()
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudo leer config.json")
		return &dto.MessageResponse{OK: false, Msg: "No se pudo leer la configuración del conector."}
	}
	archive, err := s.store.ReadCertificate()
	if err != nil {
		return &dto.MessageResponse{OK: false, Msg: msgNoCert}
	}
	if !st.HasPassword() {
		return &dto.MessageResponse{OK: false, Msg: msgNoPassword}
	}
	ok, msg := infsefaz.VerifyCertificate(archive, st.PFXPassword)
	s.metrics.ObserveCertificateLoad(ok)
	return &dto.MessageResponse{OK: ok, Msg: msg}
}

// VerifyUpload verifica un .pfx recibido sin guardarlo.
func (s *Service) VerifyUpload(in dto.VerifyCertRequest) *dto.MessageResponse {
	if in.Password == "" {
		return &dto.MessageResponse{OK: false, Msg: msgPasswordEmpty}
	}
	archive, err := decodeArchiveB64(in.PFXBase64)
	if err != nil {
		return &dto.MessageResponse{OK: false, Msg: msgBadArchive}
	}
	ok, msg := infsefaz.VerifyCertificate(archive, in.Password)
	s.metrics.ObserveCertificateLoad(ok)
	return &dto.MessageResponse{OK: ok, Msg: msg}
}

// ConfigureCert valida el certificado ANTES de guardarlo; si no abre no se
// toca nada en disco. Al guardar publica la nueva credencial.
func (s *Service) ConfigureCert(in dto.ConfigCertRequest) *dto.MessageResponse {
	if in.Password == "" {
		return &dto.MessageResponse{OK: false, Msg: msgPasswordEmpty}
	}
	archive, err := decodeArchiveB64(in.PFXBase64)
	if err != nil || len(archive) == 0 {
		return &dto.MessageResponse{OK: false, Msg: msgBadArchive}
	}

	cnpj := pkgsefaz.OnlyDigits(in.CNPJ)
	if cnpj != "" {
		if _, err := domsefaz.ParseTaxID(cnpj); err != nil {
			return &dto.MessageResponse{OK: false, Msg: "CNPJ inválido: debe tener 14 dígitos."}
		}
	}
	tpAmb := in.TpAmb
	if tpAmb == 0 {
		tpAmb = pkgsefaz.TpAmbProduction
	}
	env, err := domsefaz.ParseEnvironment(tpAmb)
	if err != nil {
		return &dto.MessageResponse{OK: false, Msg: "Ambiente inválido (tp_amb debe ser 1 o 2)."}
	}

	bundle, err := infsefaz.LoadCertificateBundle(archive, in.Password)
	s.metrics.ObserveCertificateLoad(err == nil)
	if err != nil {
		return &dto.MessageResponse{OK: false, Msg: credentialMessage(err)}
	}

	st, err := s.store.SaveCertificate(archive, localstore.Settings{
		PFXPassword: in.Password,
		CNPJ:        cnpj,
		TpAmb:       tpAmb,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("no se pudo guardar el certificado")
		return &dto.MessageResponse{OK: false, Msg: "No se pudo guardar la configuración del conector."}
	}

	taxID := cnpj
	if taxID == "" {
		taxID = bundle.TaxID
	}
	s.holder.Replace(retrieval.NewCertificateConfig(st.Version, bundle, taxID, env))
	s.log.Info().
		Int("version", st.Version).
		Str("subject", bundle.Subject).
		Str("ambiente", env.String()).
		Msg("certificado configurado")
	return &dto.MessageResponse{OK: true, Msg: msgCertSaved}
}

// credentials devuelve la credencial publicada si corresponde a la versión
// guardada; si no, la carga desde disco y la publica.
func (s *Service) credentials() (*retrieval.CertificateConfig, error) {
	st, err := s.store.Load()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredential, err)
	}
	if cur := s.holder.Current(); cur != nil && cur.Version == st.Version {
		return cur, nil
	}

	// La versión publicada ya no corresponde a disco: no se reutiliza aunque
	// la nueva no abra.
	s.holder.Clear()

	archive, err := s.store.ReadCertificate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredential, err)
	}
	env, err := domsefaz.ParseEnvironment(st.TpAmb)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredential, err)
	}
	bundle, err := infsefaz.LoadCertificateBundle(archive, st.PFXPassword)
	s.metrics.ObserveCertificateLoad(err == nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrCredential, err)
	}
	if bundle.Expired(time.Now()) {
		s.log.Warn().Time("not_after", bundle.NotAfter).Msg("el certificado guardado está vencido")
	}

	taxID := st.CNPJ
	if taxID == "" {
		taxID = bundle.TaxID
	}
	cfg := retrieval.NewCertificateConfig(st.Version, bundle, taxID, env)
	s.holder.Replace(cfg)
	s.log.Debug().Int("version", st.Version).Msg("certificado cargado desde disco")
	return cfg, nil
}

// credentialMessage texto para la UI; nunca incluye la contraseña.
func credentialMessage(err error) string {
	switch {
	case errors.Is(err, localstore.ErrNoCertificate):
		return msgNoCert
	case errors.Is(err, infsefaz.ErrEmptyPassword):
		return msgNoPassword
	case errors.Is(err, infsefaz.ErrDecryptionFailed):
		return "No se pudo abrir el certificado (contraseña incorrecta o archivo inválido)."
	case errors.Is(err, infsefaz.ErrMissingKeyOrCertificate):
		return "El archivo no contiene llave privada y certificado correspondientes."
	case errors.Is(err, domsefaz.ErrInvalidEnvironment):
		return "Ambiente guardado inválido (tp_amb debe ser 1 o 2)."
	}
	return "No se pudo cargar el certificado del conector."
}

func decodeArchiveB64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if i := strings.Index(s, ";base64,"); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+len(";base64,"):]
	}
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\r' || r == ' ' || r == '\t' {
			return -1
		}
		return r
	}, s)
	return base64.StdEncoding.DecodeString(s)
}

// ── Descarga ─────────────────────────────────────────────────────────────────

// Download consulta un documento por chave. Siempre devuelve una respuesta;
// OK solo es true para cStat 138 (o un acierto de caché).
func (s *Service) Download(ctx context.Context, in dto.DownloadRequest) *dto.DownloadResponse {
	start := time.Now()
	family := domsefaz.DocumentFamily(strings.ToUpper(strings.TrimSpace(in.Tipo)))

	key, verr := retrieval.ValidateRequest(in.Chave, family)
	if verr != nil {
		s.metrics.ObserveFetch(string(family), verr.Kind(), start)
		resp := responseFor(*verr)
		resp.Chave = strings.TrimSpace(in.Chave)
		return resp
	}

	log := s.log.With().
		Str("chave", key.String()).
		Str("family", string(family)).
		Str("emitente", key.IssuerTaxID()).
		Str("client", in.ClientID).
		Logger()

	if s.CacheEnabled() && in.Refresh {
		if err := s.cache.Invalidate(ctx, string(family), key.String()); err != nil {
			log.Warn().Err(err).Msg("no se pudo invalidar la caché")
		}
	} else if s.CacheEnabled() {
		xmlText, ok, err := s.cache.Get(ctx, string(family), key.String())
		if err != nil {
			log.Warn().Err(err).Msg("caché no disponible")
		} else if ok {
			s.metrics.IncrementCacheHit()
			s.metrics.ObserveFetch(string(family), retrieval.KindSuccess, start)
			return &dto.DownloadResponse{
				Chave:     key.String(),
				OK:        true,
				Msg:       msgFromCache,
				XML:       xmlText,
				Resultado: retrieval.KindSuccess,
				FromCache: true,
			}
		}
	}

	// La consulta compartida no depende de la cancelación de quien la inició;
	// cada llamador espera solo hasta su propio plazo.
	ch := s.inflight.DoChan(string(family)+":"+key.String(), func() (any, error) {
		shared, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.timeout)
		defer cancel()
		return s.download(shared, key, family, start, &log), nil
	})
	select {
	case r := <-ch:
		resp := *r.Val.(*dto.DownloadResponse)
		resp.Chave = key.String()
		return &resp
	case <-ctx.Done():
		out := retrieval.TransportError{Reason: "Consulta cancelada: " + ctx.Err().Error()}
		log.Info().Msg("descarga cancelada por el llamador")
		s.metrics.ObserveFetch(string(family), out.Kind(), start)
		resp := responseFor(out)
		resp.Chave = key.String()
		return resp
	}
}

func (s *Service) download(ctx context.Context, key domsefaz.AccessKey, family domsefaz.DocumentFamily, start time.Time, log *zerolog.Logger) *dto.DownloadResponse {
	eventID := s.startEvent(ctx, key, family)

	cfg, err := s.credentials()
	if err != nil {
		msg := credentialMessage(err)
		log.Warn().Err(err).Msg("credencial no disponible")
		s.finishEvent(ctx, eventID, entity.DownloadStatusError, msg)
		s.metrics.ObserveFetch(string(family), ResultCredential, start)
		return &dto.DownloadResponse{OK: false, Msg: msg, Resultado: ResultCredential, Code: ResultCredential}
	}

	out := s.fetcher.Fetch(ctx, key.String(), family, cfg)
	resp := responseFor(out)
	s.finishEvent(ctx, eventID, eventStatus(out), out.Message())
	s.metrics.ObserveFetch(string(family), out.Kind(), start)

	if ok, isSuccess := out.(retrieval.Success); isSuccess {
		doc := ok.Document()
		s.persist(ctx, key, family, doc)
		if s.CacheEnabled() {
			if err := s.cache.Set(ctx, string(family), key.String(), doc.XML); err != nil {
				log.Warn().Err(err).Msg("no se pudo guardar en caché")
			}
		}
	}
	return resp
}

// responseBuilder traduce cada variante de Outcome a la respuesta JSON.
type responseBuilder struct {
	resp *dto.DownloadResponse
}

func responseFor(out retrieval.Outcome) *dto.DownloadResponse {
	b := &responseBuilder{resp: &dto.DownloadResponse{Msg: out.Message(), Resultado: out.Kind()}}
	out.Accept(b)
	return b.resp
}

func (b *responseBuilder) VisitSuccess(o retrieval.Success) {
	doc := o.Document()
	b.resp.OK = true
	b.resp.XML = doc.XML
	b.resp.CStat = o.Status
	b.resp.Schema = doc.Schema
	b.resp.NSU = doc.NSU
}

func (b *responseBuilder) VisitNotFound(retrieval.NotFound) {
	b.resp.Code = retrieval.KindNotFound
	b.resp.CStat = pkgsefaz.StatusNoDocuments
}

func (b *responseBuilder) VisitServerRejection(o retrieval.ServerRejection) {
	b.resp.Code = retrieval.KindServerRejection
	b.resp.CStat = o.Status
	b.resp.Transient = pkgsefaz.IsTransientStatus(o.Status)
}

func (b *responseBuilder) VisitValidationError(retrieval.ValidationError) {
	b.resp.Code = retrieval.KindValidationError
}

func (b *responseBuilder) VisitTransportError(retrieval.TransportError) {
	b.resp.Code = retrieval.KindTransportError
}

func (b *responseBuilder) VisitParseError(retrieval.ParseError) {
	b.resp.Code = retrieval.KindParseError
}

func eventStatus(out retrieval.Outcome) string {
	switch out.(type) {
	case retrieval.Success:
		return entity.DownloadStatusOK
	case retrieval.NotFound:
		return entity.DownloadStatusNotFound
	case retrieval.ServerRejection:
		return entity.DownloadStatusRejected
	}
	return entity.DownloadStatusError
}

// ── Historial ────────────────────────────────────────────────────────────────

// startEvent registra el intento; los errores del historial no cortan la descarga.
func (s *Service) startEvent(ctx context.Context, key domsefaz.AccessKey, family domsefaz.DocumentFamily) string {
	if s.events == nil {
		return ""
	}
	ev := &entity.DownloadEvent{
		Key:     key.String(),
		Family:  string(family),
		Status:  entity.DownloadStatusPending,
		Message: "Consultando SEFAZ",
	}
	if err := s.events.Create(ctx, ev); err != nil {
		s.log.Warn().Err(err).Msg("no se pudo registrar el historial")
		return ""
	}
	return ev.ID
}

func (s *Service) finishEvent(ctx context.Context, id, status, message string) {
	if s.events == nil || id == "" {
		return
	}
	if err := s.events.UpdateStatus(ctx, id, status, message); err != nil {
		s.log.Warn().Err(err).Str("event_id", id).Msg("no se pudo actualizar el historial")
	}
}

func (s *Service) persist(ctx context.Context, key domsefaz.AccessKey, family domsefaz.DocumentFamily, doc retrieval.RetrievedDocument) {
	if s.documents == nil {
		return
	}
	digest, err := infsefaz.CanonicalDigest(doc.XML)
	if err != nil {
		sum := sha256.Sum256([]byte(doc.XML))
		digest = hex.EncodeToString(sum[:])
		s.log.Debug().Err(err).Msg("XML no canonicalizable; digest sobre bytes crudos")
	}
	rec := &entity.XMLDocument{
		Key:    key.String(),
		Family: string(family),
		XML:    doc.XML,
		Schema: doc.Schema,
		NSU:    doc.NSU,
		Digest: digest,
	}
	if sum, err := domsefaz.Summarize(doc.XML); err == nil {
		rec.Issuer = sum.Issuer.Name
		rec.IssuedAt = sum.IssuedAt
		rec.Total = sum.Total
	}
	if rec.Issuer == "" {
		rec.Issuer = key.IssuerTaxID()
	}
	if err := s.documents.Upsert(ctx, rec); err != nil {
		s.log.Warn().Err(err).Msg("no se pudo guardar el XML en el historial")
	}
}

// History últimos intentos de descarga.
func (s *Service) History(ctx context.Context, limit int) ([]dto.DownloadEventResponse, error) {
	if s.events == nil {
		return nil, domain.ErrNotConfigured
	}
	list, err := s.events.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.DownloadEventResponse, 0, len(list))
	for _, ev := range list {
		out = append(out, dto.DownloadEventResponse{
			ID:        ev.ID,
			Chave:     ev.Key,
			Tipo:      ev.Family,
			Status:    ev.Status,
			Message:   ev.Message,
			CreatedAt: ev.CreatedAt,
			UpdatedAt: ev.UpdatedAt,
		})
	}
	return out, nil
}

// Documents XML guardados, sin el contenido.
func (s *Service) Documents(ctx context.Context, limit int) ([]dto.XMLDocumentResponse, error) {
	if s.documents == nil {
		return nil, domain.ErrNotConfigured
	}
	list, err := s.documents.List(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.XMLDocumentResponse, 0, len(list))
	for _, d := range list {
		out = append(out, *documentResponse(d, false))
	}
	return out, nil
}

// Document detalle con el XML.
func (s *Service) Document(ctx context.Context, id string) (*dto.XMLDocumentResponse, error) {
	d, err := s.storedDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	return documentResponse(d, true), nil
}

func (s *Service) storedDocument(ctx context.Context, id string) (*entity.XMLDocument, error) {
	if s.documents == nil {
		return nil, domain.ErrNotConfigured
	}
	d, err := s.documents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, domain.ErrNotFound
	}
	return d, nil
}

func documentResponse(d *entity.XMLDocument, withXML bool) *dto.XMLDocumentResponse {
	r := &dto.XMLDocumentResponse{
		ID:        d.ID,
		Chave:     d.Key,
		Tipo:      d.Family,
		Schema:    d.Schema,
		NSU:       d.NSU,
		Digest:    d.Digest,
		Emitente:  d.Issuer,
		Emissao:   d.IssuedAt,
		Total:     d.Total.StringFixed(2),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if withXML {
		r.XML = d.XML
	}
	return r
}

// ── PDF ──────────────────────────────────────────────────────────────────────

// RenderPDF DANFE/DACTE simplificado de un XML recibido.
func (s *Service) RenderPDF(ctx context.Context, xmlText string) ([]byte, error) {
	if strings.TrimSpace(xmlText) == "" {
		return nil, fmt.Errorf("%w: XML vacío", domain.ErrInvalidInput)
	}
	if s.renderer == nil {
		return nil, domain.ErrNotConfigured
	}
	pdf, err := s.renderer.Render(ctx, xmlText)
	if err != nil {
		if errors.Is(err, domsefaz.ErrUnreadableDocument) {
			return nil, fmt.Errorf("%w: %w", domain.ErrInvalidInput, err)
		}
		return nil, err
	}
	return pdf, nil
}

// RenderStoredPDF PDF de un documento guardado; devuelve también su chave
// para nombrar el archivo.
func (s *Service) RenderStoredPDF(ctx context.Context, id string) ([]byte, string, error) {
	d, err := s.storedDocument(ctx, id)
	if err != nil {
		return nil, "", err
	}
	pdf, err := s.RenderPDF(ctx, d.XML)
	if err != nil {
		return nil, "", err
	}
	return pdf, d.Key, nil
}
