package sefaz

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/beevik/etree"
)

// ── Constantes ────────────────────────────────────────────────────────────────

const (
	soapNS = "http://schemas.xmlsoap.org/soap/envelope/"

	// DefaultTimeout límite por llamada; la SEFAZ no ofrece SLA.
	DefaultTimeout = 30 * time.Second
	// DefaultMaxBodyBytes tope de lectura de la respuesta (10 MiB).
	DefaultMaxBodyBytes = 10 << 20

	userAgent = "XSist/1.0"
)

var (
	// ErrMissingClientCertificate no hay par certificado/llave: la llamada no se intenta.
	ErrMissingClientCertificate = errors.New("soap: falta el certificado cliente (mTLS)")
	// ErrResponseTooLarge la respuesta supera el límite configurado.
	ErrResponseTooLarge = errors.New("soap: respuesta excede el tamaño máximo")
)

// TransportError falla a nivel de conexión (DNS, TLS, timeout, cancelación).
type TransportError struct {
	Op  string // build, connect, read
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("soap: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ── Request / Response ────────────────────────────────────────────────────────

// SOAPRequest describe una operación SOAP 1.1 cuyo mensaje es un XML de negocio.
type SOAPRequest struct {
	URL        string
	Action     string   // header SOAPAction
	Operation  xml.Name // elemento de operación dentro de Body (Space = namespace del WSDL)
	MessageTag string   // elemento que envuelve el payload (ej. nfeDadosMsg)
	Payload    []byte   // XML de negocio; la declaración <?xml?> se descarta
}

// SOAPResponse respuesta cruda. Un status no-2xx no es error de transporte.
type SOAPResponse struct {
	StatusCode int
	Body       []byte
}

// OK indica status 2xx.
func (r *SOAPResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Fault extrae código y texto de un SOAP Fault (1.1: faultcode/faultstring;
// 1.2: Code/Value y Reason/Text). ok=false si el cuerpo no trae Fault.
func (r *SOAPResponse) Fault() (code, reason string, ok bool) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(r.Body); err != nil || doc.Root() == nil {
		return "", "", false
	}
	fault := findLocal(doc.Root(), "Fault")
	if fault == nil {
		return "", "", false
	}
	if el := findLocal(fault, "faultcode"); el != nil {
		code = strings.TrimSpace(el.Text())
	}
	if el := findLocal(fault, "faultstring"); el != nil {
		reason = strings.TrimSpace(el.Text())
	}
	if code == "" {
		if c := findLocal(fault, "Code"); c != nil {
			if v := findLocal(c, "Value"); v != nil {
				code = strings.TrimSpace(v.Text())
			}
		}
	}
	if reason == "" {
		if rs := findLocal(fault, "Reason"); rs != nil {
			if t := findLocal(rs, "Text"); t != nil {
				reason = strings.TrimSpace(t.Text())
			}
		}
	}
	return code, reason, true
}

// ── Cliente ───────────────────────────────────────────────────────────────────

// SOAPClient envía sobres SOAP sobre HTTPS con certificado cliente. Retiene el
// http.Client del certificado vigente (huella SHA-256) para reutilizar
// conexiones TLS; al cambiar de certificado cierra las del anterior.
// Seguro para uso concurrente.
type SOAPClient struct {
	timeout      time.Duration
	maxBodyBytes int64
	rootCAs      *x509.CertPool

	mu      sync.Mutex
	clients map[string]*http.Client
}

// Option configura el SOAPClient.
type Option func(*SOAPClient)

// WithTimeout cambia el timeout por llamada (<= 0 se ignora).
func WithTimeout(d time.Duration) Option {
	return func(c *SOAPClient) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBodyBytes cambia el tope de lectura de la respuesta.
func WithMaxBodyBytes(n int64) Option {
	return func(c *SOAPClient) {
		if n > 0 {
			c.maxBodyBytes = n
		}
	}
}

// WithRootCAs raíces de confianza para el servidor (nil = raíces del sistema).
func WithRootCAs(pool *x509.CertPool) Option {
	return func(c *SOAPClient) { c.rootCAs = pool }
}

// NewSOAPClient construye el cliente con timeout de 30 s y límite de 10 MiB.
func NewSOAPClient(opts ...Option) *SOAPClient {
	c := &SOAPClient{
		timeout:      DefaultTimeout,
		maxBodyBytes: DefaultMaxBodyBytes,
		clients:      make(map[string]*http.Client),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Post envuelve el payload y lo envía presentando cert como identidad TLS.
func (c *SOAPClient) Post(ctx context.Context, req SOAPRequest, cert tls.Certificate) (*SOAPResponse, error) {
	if len(cert.Certificate) == 0 || cert.PrivateKey == nil {
		return nil, ErrMissingClientCertificate
	}

	envelope, err := BuildEnvelope(req)
	if err != nil {
		return nil, &TransportError{Op: "build", Err: err}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, bytes.NewReader(envelope))
	if err != nil {
		return nil, &TransportError{Op: "build", Err: fmt.Errorf("crear request: %w", err)}
	}
	httpReq.Header.Set("Content-Type", "text/xml; charset=utf-8")
	httpReq.Header.Set("SOAPAction", req.Action)
	httpReq.Header.Set("User-Agent", userAgent)

	resp, err := c.clientFor(cert).Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &TransportError{Op: "connect", Err: fmt.Errorf("timeout o cancelación: %w", ctx.Err())}
		}
		return nil, &TransportError{Op: "connect", Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBodyBytes+1))
	if err != nil {
		return nil, &TransportError{Op: "read", Err: err}
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, &TransportError{Op: "read", Err: ErrResponseTooLarge}
	}
	return &SOAPResponse{StatusCode: resp.StatusCode, Body: body}, nil
}

func (c *SOAPClient) clientFor(cert tls.Certificate) *http.Client {
	sum := sha256.Sum256(cert.Certificate[0])
	fp := hex.EncodeToString(sum[:])

	c.mu.Lock()
	defer c.mu.Unlock()
	if hc, ok := c.clients[fp]; ok {
		return hc
	}
	// Certificado nuevo: los clientes del anterior no se vuelven a usar.
	for old, hc := range c.clients {
		hc.CloseIdleConnections()
		delete(c.clients, old)
	}
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSClientConfig: &tls.Config{
			MinVersion:    tls.VersionTLS12,
			Certificates:  []tls.Certificate{cert},
			RootCAs:       c.rootCAs,
			Renegotiation: tls.RenegotiateOnceAsClient,
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConnsPerHost: 2,
		IdleConnTimeout:     90 * time.Second,
	}
	hc := &http.Client{Timeout: c.timeout, Transport: transport}
	c.clients[fp] = hc
	return hc
}

// ── Envelope ──────────────────────────────────────────────────────────────────

// BuildEnvelope arma el sobre SOAP 1.1:
//
//	<soap:Envelope><soap:Body><Operation xmlns="ns"><MessageTag>PAYLOAD</MessageTag></Operation></soap:Body></soap:Envelope>
//
// El payload se inserta como elemento hijo (no CDATA).
func BuildEnvelope(req SOAPRequest) ([]byte, error) {
	if req.Operation.Local == "" || req.MessageTag == "" {
		return nil, errors.New("envelope: operación y tag de mensaje son obligatorios")
	}
	payload := etree.NewDocument()
	if err := payload.ReadFromBytes(req.Payload); err != nil {
		return nil, fmt.Errorf("envelope: payload no es XML: %w", err)
	}
	if payload.Root() == nil {
		return nil, errors.New("envelope: payload vacío")
	}

	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="utf-8"`)
	env := doc.CreateElement("soap:Envelope")
	env.CreateAttr("xmlns:soap", soapNS)
	body := env.CreateElement("soap:Body")
	op := body.CreateElement(req.Operation.Local)
	if req.Operation.Space != "" {
		op.CreateAttr("xmlns", req.Operation.Space)
	}
	op.CreateElement(req.MessageTag).AddChild(payload.Root().Copy())

	out, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("envelope: serializar: %w", err)
	}
	return out, nil
}

// findLocal búsqueda en profundidad por nombre local (ignora prefijo).
func findLocal(root *etree.Element, local string) *etree.Element {
	if root == nil {
		return nil
	}
	if root.Tag == local {
		return root
	}
	for _, c := range root.ChildElements() {
		if el := findLocal(c, local); el != nil {
			return el
		}
	}
	return nil
}
