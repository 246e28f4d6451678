// Carga del certificado A1 (PKCS#12 / .pfx) usado como identidad TLS cliente.

package sefaz

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/tls"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/crypto/pkcs12"
	gopkcs12 "software.sslmate.com/src/go-pkcs12"

	pkgsefaz "github.com/jhoicas/xsist-conector/pkg/sefaz"
)

var (
	// ErrEmptyPassword el .pfx se carga siempre con contraseña.
	ErrEmptyPassword = errors.New("cert: la contraseña del certificado es obligatoria")
	// ErrDecryptionFailed contraseña incorrecta o archivo dañado (no se distinguen).
	ErrDecryptionFailed = errors.New("cert: no se pudo abrir el certificado (contraseña incorrecta o archivo inválido)")
	// ErrMissingKeyOrCertificate el archivo no trae exactamente una llave privada con su certificado.
	ErrMissingKeyOrCertificate = errors.New("cert: el archivo no contiene llave privada y certificado correspondientes")
)

// CertificateBundle certificado hoja + cadena + llave privada listos para mTLS.
// Vive solo en memoria: nunca se escribe PEM ni llave a disco.
type CertificateBundle struct {
	Certificate tls.Certificate // Certificate[0] es la hoja; Leaf y PrivateKey rellenos
	Subject     string
	NotBefore   time.Time
	NotAfter    time.Time
	Fingerprint string // SHA-256 hex del DER de la hoja
	TaxID       string // CNPJ del CN (formato ICP-Brasil "RAZAO:CNPJ"), vacío si no aplica
}

// Expired indica si el certificado venció respecto a now.
func (b *CertificateBundle) Expired(now time.Time) bool {
	return now.After(b.NotAfter)
}

// String no expone material sensible.
func (b *CertificateBundle) String() string {
	return fmt.Sprintf("CertificateBundle{subject=%q, notAfter=%s, fingerprint=%s}",
		b.Subject, b.NotAfter.Format(time.RFC3339), b.Fingerprint)
}

// LoadCertificateFile lee el .pfx desde path y delega en LoadCertificateBundle.
func LoadCertificateFile(path, password string) (*CertificateBundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cert: leer pfx: %w", err)
	}
	return LoadCertificateBundle(data, password)
}

// LoadCertificateBundle decodifica un PKCS#12 protegido con password. Acepta
// archivos con la cadena ICP-Brasil completa: la hoja es el certificado cuya
// llave pública corresponde a la llave privada.
func LoadCertificateBundle(archive []byte, password string) (*CertificateBundle, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(archive) == 0 {
		return nil, ErrDecryptionFailed
	}

	key, certs, err := decodeArchive(archive, password)
	if err != nil {
		return nil, err
	}
	if key == nil || len(certs) == 0 {
		return nil, ErrMissingKeyOrCertificate
	}

	leafIdx := matchLeaf(key, certs)
	if leafIdx < 0 {
		return nil, fmt.Errorf("%w: ningún certificado corresponde a la llave", ErrMissingKeyOrCertificate)
	}
	leaf := certs[leafIdx]

	chain := [][]byte{leaf.Raw}
	for i, c := range certs {
		if i != leafIdx {
			chain = append(chain, c.Raw)
		}
	}

	sum := sha256.Sum256(leaf.Raw)
	return &CertificateBundle{
		Certificate: tls.Certificate{
			Certificate: chain,
			PrivateKey:  key,
			Leaf:        leaf,
		},
		Subject:     leaf.Subject.String(),
		NotBefore:   leaf.NotBefore,
		NotAfter:    leaf.NotAfter,
		Fingerprint: hex.EncodeToString(sum[:]),
		TaxID:       taxIDFromCommonName(leaf.Subject.CommonName),
	}, nil
}

// VerifyCertificate intenta cargar el archivo y devuelve un mensaje apto para UI.
// Nunca incluye la contraseña ni detalles del decodificador.
func VerifyCertificate(archive []byte, password string) (bool, string) {
	b, err := LoadCertificateBundle(archive, password)
	if err != nil {
		return false, err.Error()
	}
	msg := "OK: certificado leído. Subject=" + b.Subject
	if b.Expired(time.Now()) {
		msg += fmt.Sprintf(" (ATENCIÓN: vencido el %s)", b.NotAfter.Format("2006-01-02"))
	}
	return true, msg
}

// decodeArchive usa x/crypto/pkcs12 (RC2/3DES, el formato de los A1 emitidos
// por las AC brasileñas) y, si el formato no es soportado, go-pkcs12, que además
// entiende PBES2/AES y MAC SHA-256 (exportaciones de OpenSSL 3).
func decodeArchive(archive []byte, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	blocks, err := pkcs12.ToPEM(archive, password)
	if err != nil {
		// Contraseña incorrecta y archivo dañado se reportan igual, sin detalle del decodificador.
		if errors.Is(err, pkcs12.ErrIncorrectPassword) {
			return nil, nil, ErrDecryptionFailed
		}
		return decodeArchiveModern(archive, password)
	}

	var (
		key   crypto.PrivateKey
		certs []*x509.Certificate
	)
	for _, b := range blocks {
		switch b.Type {
		case "CERTIFICATE":
			c, err := x509.ParseCertificate(b.Bytes)
			if err != nil {
				return nil, nil, ErrDecryptionFailed
			}
			certs = append(certs, c)
		case "PRIVATE KEY":
			if key != nil {
				return nil, nil, fmt.Errorf("%w: más de una llave privada", ErrMissingKeyOrCertificate)
			}
			k, err := parsePrivateKey(b)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: llave privada no soportada", ErrMissingKeyOrCertificate)
			}
			key = k
		}
	}
	return key, certs, nil
}

func decodeArchiveModern(archive []byte, password string) (crypto.PrivateKey, []*x509.Certificate, error) {
	key, leaf, cas, err := gopkcs12.DecodeChain(archive, password)
	if err != nil {
		return nil, nil, ErrDecryptionFailed
	}
	certs := make([]*x509.Certificate, 0, len(cas)+1)
	if leaf != nil {
		certs = append(certs, leaf)
	}
	certs = append(certs, cas...)
	return key, certs, nil
}

// parsePrivateKey pkcs12.ToPEM etiqueta todo como "PRIVATE KEY" aunque RSA
// venga en PKCS#1 y ECDSA en SEC 1.
func parsePrivateKey(b *pem.Block) (crypto.PrivateKey, error) {
	if k, err := x509.ParsePKCS1PrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	if k, err := x509.ParseECPrivateKey(b.Bytes); err == nil {
		return k, nil
	}
	k, err := x509.ParsePKCS8PrivateKey(b.Bytes)
	if err != nil {
		return nil, err
	}
	switch k.(type) {
	case *rsa.PrivateKey, *ecdsa.PrivateKey:
		return k, nil
	}
	return nil, fmt.Errorf("tipo de llave %T", k)
}

func matchLeaf(key crypto.PrivateKey, certs []*x509.Certificate) int {
	signer, ok := key.(crypto.Signer)
	if !ok {
		return -1
	}
	pub, ok := signer.Public().(interface{ Equal(crypto.PublicKey) bool })
	if !ok {
		return -1
	}
	for i, c := range certs {
		if pub.Equal(c.PublicKey) {
			return i
		}
	}
	return -1
}

// taxIDFromCommonName extrae el CNPJ del CN de un e-CNPJ ICP-Brasil ("EMPRESA LTDA:11222333000181").
func taxIDFromCommonName(cn string) string {
	i := strings.LastIndex(cn, ":")
	if i < 0 {
		return ""
	}
	d := strings.TrimSpace(cn[i+1:])
	if len(d) != 14 || !pkgsefaz.IsDigits(d) {
		return ""
	}
	return d
}
