// Package sefaz contiene catálogos y utilidades alineados a los Manuales de
// Orientación del Contribuyente (MOC) de NF-e / CT-e y al servicio
// NFeDistribuicaoDFe del Ambiente Nacional (Brasil).
package sefaz

// =============================================================================
// Códigos de situación (cStat) del retDistDFeInt - NT 2014.002
// =============================================================================

const (
	StatusNoDocuments       = "137" // Ningún documento localizado
	StatusDocumentsFound    = "138" // Documento(s) localizado(s)
	StatusConsumoIndevido   = "656" // Rechazo: consumo indebido (bloqueo temporal)
	StatusNoPermission      = "640" // Rechazo: CNPJ sin permiso para consultar la chave
	StatusInvalidAccessKey  = "236" // Rechazo: chave de acceso con dígito verificador inválido
	StatusUnauthorizedCNPJ  = "593" // Rechazo: CNPJ del certificado difiere del solicitante
	StatusServiceParalyzed  = "108" // Servicio paralizado momentáneamente
	StatusServiceOutOfOrder = "109" // Servicio paralizado sin previsión
)

// StatusDescriptions descripción corta de los cStat más frecuentes (para logs y UI).
// El xMotivo devuelto por la SEFAZ siempre tiene prioridad sobre este catálogo.
var StatusDescriptions = map[string]string{
	StatusNoDocuments:       "Nenhum documento localizado",
	StatusDocumentsFound:    "Documento localizado",
	StatusConsumoIndevido:   "Consumo Indevido",
	StatusNoPermission:      "CNPJ/CPF do interessado não possui permissão para consultar esta NF-e",
	StatusInvalidAccessKey:  "Chave de Acesso inválida",
	StatusUnauthorizedCNPJ:  "CNPJ-Base consultado difere do CNPJ-Base do Certificado Digital",
	StatusServiceParalyzed:  "Serviço Paralisado Momentaneamente",
	StatusServiceOutOfOrder: "Serviço Paralisado sem Previsão",
}

// IsTransientStatus indica si el cStat corresponde a una indisponibilidad temporal
// del servicio (el usuario puede reintentar más tarde).
func IsTransientStatus(cStat string) bool {
	switch cStat {
	case StatusConsumoIndevido, StatusServiceParalyzed, StatusServiceOutOfOrder:
		return true
	}
	return false
}

// =============================================================================
// Tipo de ambiente (tpAmb)
// =============================================================================

const (
	TpAmbProduction = 1 // Producción
	TpAmbStaging    = 2 // Homologación
)

// =============================================================================
// Endpoints y namespaces del servicio NFeDistribuicaoDFe (Ambiente Nacional)
// =============================================================================

const (
	NFeDistURLProduction = "https://www1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"
	NFeDistURLStaging    = "https://hom1.nfe.fazenda.gov.br/NFeDistribuicaoDFe/NFeDistribuicaoDFe.asmx"

	NFeDistWSDLNamespace = "http://www.portalfiscal.inf.br/nfe/wsdl/NFeDistribuicaoDFe"
	NFeDistSOAPAction    = NFeDistWSDLNamespace + "/nfeDistDFeInteresse"
	NFeDistOperation     = "nfeDistDFeInteresse"
	NFeDistMessageTag    = "nfeDadosMsg"

	NamespaceNFe       = "http://www.portalfiscal.inf.br/nfe"
	DistDFeIntVersion  = "1.01"
)

// =============================================================================
// Tabla de códigos de UF (IBGE) - primer campo de la chave de acceso
// =============================================================================

// UFCodes mapea el código IBGE de la unidad federativa a su sigla.
var UFCodes = map[string]string{
	"11": "RO", "12": "AC", "13": "AM", "14": "RR", "15": "PA", "16": "AP", "17": "TO",
	"21": "MA", "22": "PI", "23": "CE", "24": "RN", "25": "PB", "26": "PE", "27": "AL",
	"28": "SE", "29": "BA",
	"31": "MG", "32": "ES", "33": "RJ", "35": "SP",
	"41": "PR", "42": "SC", "43": "RS",
	"50": "MS", "51": "MT", "52": "GO", "53": "DF",
	"91": "AN", // Ambiente Nacional
}

// =============================================================================
// Modelos de documento fiscal (posiciones 21-22 de la chave)
// =============================================================================

const (
	ModelNFe   = "55" // Nota Fiscal Eletrônica
	ModelNFCe  = "65" // Nota Fiscal de Consumidor Eletrônica
	ModelCTe   = "57" // Conhecimento de Transporte Eletrônico
	ModelCTeOS = "67" // CT-e Outros Serviços
)
