package sefaz

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/ucarion/c14n"
)

// CanonicalDigest SHA-256 (hex) del XML en forma canónica C14N. Dos descargas
// del mismo documento que solo difieran en espacios de atributos, orden de
// atributos o declaración producen el mismo digest.
func CanonicalDigest(xmlText string) (string, error) {
	canon, err := canonicalizeXML([]byte(stripDeclaration(xmlText)))
	if err != nil {
		return "", fmt.Errorf("digest: canonicalizar: %w", err)
	}
	sum := sha256.Sum256(canon)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalizeXML(data []byte) ([]byte, error) {
	dec := xml.NewDecoder(bytes.NewReader(data))
	dec.Entity = map[string]string{}
	return c14n.Canonicalize(dec)
}

// stripDeclaration quita la declaración <?xml ...?> inicial (C14N no la incluye).
func stripDeclaration(s string) string {
	s = strings.TrimSpace(strings.TrimPrefix(s, "\ufeff"))
	if strings.HasPrefix(s, "<?xml") {
		if end := strings.Index(s, "?>"); end >= 0 {
			s = strings.TrimSpace(s[end+2:])
		}
	}
	return s
}
