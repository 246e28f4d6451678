package pdf

// Helpers internos expuestos solo para los tests del paquete externo.
var (
	FormatBRL  = formatBRL
	FormatCNPJ = formatCNPJ
	SplitEvery = splitEvery
)
