package dto

import "time"

// MessageResponse respuesta genérica {ok, msg} de la API local.
type MessageResponse struct {
	OK  bool   `json:"ok"`
	Msg string `json:"msg"`
}

// StatusResponse estado de la configuración; nunca incluye valores secretos.
type StatusResponse struct {
	OK          bool `json:"ok"`
	HasCert     bool `json:"has_cert"`
	HasPassword bool `json:"has_password"`
	HasCNPJ     bool `json:"has_cnpj"`
	TpAmb       int  `json:"tp_amb"`
	Version     int  `json:"version"`
	CertLoaded  bool `json:"cert_loaded"`
	History     bool `json:"history"`
	Cache       bool `json:"cache"`
	CacheOK     bool `json:"cache_ok"` // Redis respondió al ping
}

// VerifyCertRequest archivo .pfx en base64 a verificar sin persistir.
type VerifyCertRequest struct {
	PFXBase64 string `json:"pfx_b64"`
	Password  string `json:"password"`
}

// ConfigCertRequest configuración del certificado A1 del conector.
type ConfigCertRequest struct {
	PFXBase64 string `json:"pfx_b64"`
	Password  string `json:"password"`
	CNPJ      string `json:"cnpj"`
	TpAmb     int    `json:"tp_amb"` // 1=producción, 2=homologación; 0 = 1
}

// DownloadRequest descarga de un XML por chave.
type DownloadRequest struct {
	Chave   string `json:"chave"`
	Tipo    string `json:"tipo"`      // NFE / CTE
	Refresh bool   `json:"atualizar"` // ignora y reemplaza la entrada en caché

	ClientID string `json:"-"` // cliente autenticado, solo para logs
}

// DownloadResponse resultado de una descarga. Resultado es el nombre de la
// variante (SUCCESS, NOT_FOUND, SERVER_REJECTION, VALIDATION_ERROR,
// TRANSPORT_ERROR, PARSE_ERROR) o CREDENCIAL si no se pudo cargar el certificado.
type DownloadResponse struct {
	Chave     string `json:"chave,omitempty"`
	OK        bool   `json:"ok"`
	Msg       string `json:"msg"`
	XML       string `json:"xml,omitempty"`
	Resultado string `json:"resultado"`
	Code      string `json:"code,omitempty"`
	CStat     string `json:"cstat,omitempty"`
	Schema    string `json:"schema,omitempty"`
	NSU       string `json:"nsu,omitempty"`
	FromCache bool   `json:"from_cache,omitempty"`
	Transient bool   `json:"transient,omitempty"` // rechazo temporal (108, 109, 656): reintentar más tarde
}

// ExtractKeysRequest texto libre (SPED, log, listado) del que extraer chaves.
// Si Base64 es true, Text es el archivo en base64 (permite Latin-1).
type ExtractKeysRequest struct {
	Text   string `json:"text"`
	Base64 bool   `json:"base64"`
}

// ExtractKeysResponse chaves únicas en orden de aparición.
type ExtractKeysResponse struct {
	Total    int      `json:"total"`
	Encoding string   `json:"encoding"`
	Chaves   []string `json:"chaves"`
}

// DetectKeyRequest XML del que detectar chave y tipo.
type DetectKeyRequest struct {
	XML string `json:"xml"`
}

// DetectKeyResponse chave y tipo detectados (vacíos si no se encontró).
type DetectKeyResponse struct {
	Found bool   `json:"found"`
	Chave string `json:"chave,omitempty"`
	Tipo  string `json:"tipo,omitempty"`
}

// RenderPDFRequest XML a convertir en DANFE/DACTE simplificado.
type RenderPDFRequest struct {
	XML string `json:"xml"`
}

// DownloadEventResponse fila del historial.
type DownloadEventResponse struct {
	ID        string    `json:"id"`
	Chave     string    `json:"chave"`
	Tipo      string    `json:"tipo"`
	Status    string    `json:"status"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// XMLDocumentResponse documento guardado. XML solo se incluye en el detalle.
type XMLDocumentResponse struct {
	ID        string    `json:"id"`
	Chave     string    `json:"chave"`
	Tipo      string    `json:"tipo"`
	Schema    string    `json:"schema,omitempty"`
	NSU       string    `json:"nsu,omitempty"`
	Digest    string    `json:"digest"`
	Emitente  string    `json:"emitente,omitempty"`
	Emissao   string    `json:"emissao,omitempty"`
	Total     string    `json:"total"`
	XML       string    `json:"xml,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TokenResponse JWT emitido para un cliente de la API local.
type TokenResponse struct {
	Token     string `json:"token"`
	ExpiresIn int    `json:"expires_in"` // segundos
}
