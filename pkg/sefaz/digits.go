package sefaz

import (
	"fmt"
)

// Pesos del módulo 11 de la chave de acceso: 2..9 aplicados de derecha a izquierda
// sobre los 43 primeros dígitos (MOC 7.0, Anexo I).
const keyWeightMax = 9

// cnpjWeights pesos para los dos dígitos verificadores del CNPJ.
var (
	cnpjWeights1 = [12]int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjWeights2 = [13]int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// OnlyDigits devuelve únicamente los dígitos ASCII de s.
func OnlyDigits(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] >= '0' && s[i] <= '9' {
			out = append(out, s[i])
		}
	}
	return string(out)
}

// IsDigits indica si s no es vacío y contiene solo dígitos ASCII.
func IsDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// ComputeAccessKeyCheckDigit calcula el dígito verificador (posición 44) para los
// 43 primeros dígitos de una chave de acceso.
func ComputeAccessKeyCheckDigit(first43 string) (byte, error) {
	if len(first43) != 43 || !IsDigits(first43) {
		return 0, fmt.Errorf("sefaz: se requieren 43 dígitos para calcular el DV, se recibieron %q", first43)
	}
	sum, weight := 0, 2
	for i := len(first43) - 1; i >= 0; i-- {
		sum += int(first43[i]-'0') * weight
		weight++
		if weight > keyWeightMax {
			weight = 2
		}
	}
	rem := sum % 11
	if rem == 0 || rem == 1 {
		return '0', nil
	}
	return byte('0' + (11 - rem)), nil
}

// ValidateAccessKeyCheckDigit valida el DV de una chave de 44 dígitos.
func ValidateAccessKeyCheckDigit(key string) error {
	if len(key) != 44 || !IsDigits(key) {
		return fmt.Errorf("sefaz: la chave debe tener 44 dígitos, se recibieron %d", len(key))
	}
	expected, err := ComputeAccessKeyCheckDigit(key[:43])
	if err != nil {
		return err
	}
	if key[43] != expected {
		return fmt.Errorf("sefaz: dígito verificador de la chave inválido: esperado %c, recibido %c", expected, key[43])
	}
	return nil
}

// ValidateCNPJ valida longitud y dígitos verificadores de un CNPJ de 14 dígitos.
func ValidateCNPJ(cnpj string) error {
	if len(cnpj) != 14 || !IsDigits(cnpj) {
		return fmt.Errorf("sefaz: CNPJ debe tener 14 dígitos, se recibieron %d", len(OnlyDigits(cnpj)))
	}
	dv1 := cnpjDigit(cnpj[:12], cnpjWeights1[:])
	dv2 := cnpjDigit(cnpj[:12]+string(dv1), cnpjWeights2[:])
	if cnpj[12] != dv1 || cnpj[13] != dv2 {
		return fmt.Errorf("sefaz: dígitos verificadores del CNPJ inválidos: esperado %c%c, recibido %s", dv1, dv2, cnpj[12:])
	}
	return nil
}

func cnpjDigit(base string, weights []int) byte {
	sum := 0
	for i := 0; i < len(base); i++ {
		sum += int(base[i]-'0') * weights[i]
	}
	rem := sum % 11
	if rem < 2 {
		return '0'
	}
	return byte('0' + (11 - rem))
}
