package retrieval

import "fmt"

// RetrievedDocument documento decodificado del lote.
type RetrievedDocument struct {
	NSU    string
	Schema string
	XML    string
}

// Outcome resultado de una consulta por chave. Es un tipo cerrado: solo las
// variantes de este paquete lo implementan.
type Outcome interface {
	isOutcome()
	// Accept despacha a la variante concreta.
	Accept(v OutcomeVisitor)
	// Kind nombre estable de la variante (para logs, métricas e historial).
	Kind() string
	// Message texto legible para el usuario.
	Message() string
}

// OutcomeVisitor un método por variante: al agregar una variante, todo visitor
// deja de compilar hasta manejarla.
type OutcomeVisitor interface {
	VisitSuccess(Success)
	VisitNotFound(NotFound)
	VisitServerRejection(ServerRejection)
	VisitValidationError(ValidationError)
	VisitTransportError(TransportError)
	VisitParseError(ParseError)
}

// Nombres de variante devueltos por Kind.
const (
	KindSuccess         = "SUCCESS"
	KindNotFound        = "NOT_FOUND"
	KindServerRejection = "SERVER_REJECTION"
	KindValidationError = "VALIDATION_ERROR"
	KindTransportError  = "TRANSPORT_ERROR"
	KindParseError      = "PARSE_ERROR"
)

// Success cStat 138 con al menos un documento decodificado. Documents trae solo
// el primero: una consulta por chave devuelve un único documento.
type Success struct {
	Documents     []RetrievedDocument
	ServerMessage string
	Status        string
}

// NotFound cStat 137: consulta válida sin documentos.
type NotFound struct {
	ServerMessage string
}

// ServerRejection cualquier otro cStat, con el xMotivo tal cual.
type ServerRejection struct {
	Status        string
	ServerMessage string
}

// ValidationError entrada rechazada antes de cualquier I/O.
type ValidationError struct {
	Reason string
}

// TransportError falla de red/TLS/timeout o respuesta HTTP no-2xx (HTTPStatus > 0).
type TransportError struct {
	Reason     string
	HTTPStatus int
}

// ParseError respuesta con forma inesperada.
type ParseError struct {
	Reason string
}

func (Success) isOutcome()         {}
func (NotFound) isOutcome()        {}
func (ServerRejection) isOutcome() {}
func (ValidationError) isOutcome() {}
func (TransportError) isOutcome()  {}
func (ParseError) isOutcome()      {}

func (o Success) Accept(v OutcomeVisitor)         { v.VisitSuccess(o) }
func (o NotFound) Accept(v OutcomeVisitor)        { v.VisitNotFound(o) }
func (o ServerRejection) Accept(v OutcomeVisitor) { v.VisitServerRejection(o) }
func (o ValidationError) Accept(v OutcomeVisitor) { v.VisitValidationError(o) }
func (o TransportError) Accept(v OutcomeVisitor)  { v.VisitTransportError(o) }
func (o ParseError) Accept(v OutcomeVisitor)      { v.VisitParseError(o) }

func (Success) Kind() string         { return KindSuccess }
func (NotFound) Kind() string        { return KindNotFound }
func (ServerRejection) Kind() string { return KindServerRejection }
func (ValidationError) Kind() string { return KindValidationError }
func (TransportError) Kind() string  { return KindTransportError }
func (ParseError) Kind() string      { return KindParseError }

func (o Success) Message() string  { return o.ServerMessage }
func (o NotFound) Message() string { return o.ServerMessage }

func (o ServerRejection) Message() string {
	return fmt.Sprintf("%s - %s", o.Status, o.ServerMessage)
}

func (o ValidationError) Message() string { return o.Reason }

func (o TransportError) Message() string {
	if o.HTTPStatus > 0 {
		return fmt.Sprintf("HTTP %d: %s", o.HTTPStatus, o.Reason)
	}
	return o.Reason
}

func (o ParseError) Message() string { return o.Reason }

// Document primer documento de un Success.
func (o Success) Document() RetrievedDocument {
	if len(o.Documents) == 0 {
		return RetrievedDocument{}
	}
	return o.Documents[0]
}
