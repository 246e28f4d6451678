package sefaz_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/xsist-conector/internal/domain/sefaz"
)

func TestParseAccessKey(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    sefaz.AccessKey
		wantErr bool
	}{
		{name: "44 dígitos", in: keyNFe, want: sefaz.AccessKey(keyNFe)},
		{name: "con espacios de presentación", in: "3519 0811 2223 3300 0181 5500 1000 0001 2310 0000 1234", want: sefaz.AccessKey(keyNFe)},
		{name: "con puntos y guiones", in: " 3519.0811.2223-3300/0181-5500.1000.0001.2310.0000.1234 ", want: sefaz.AccessKey(keyNFe)},
		{name: "43 dígitos", in: keyNFe[:43], wantErr: true},
		{name: "45 dígitos", in: keyNFe + "1", wantErr: true},
		{name: "con letras", in: keyNFe[:43] + "X", wantErr: true},
		{name: "vacía", in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sefaz.ParseAccessKey(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, sefaz.ErrInvalidAccessKey))
				assert.Empty(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAccessKey_Campos(t *testing.T) {
	k, err := sefaz.ParseAccessKey(keyNFe)
	require.NoError(t, err)

	assert.Equal(t, "35", k.UF())
	assert.Equal(t, "11222333000181", k.IssuerTaxID())
	assert.Equal(t, "55", k.Model())
	assert.Equal(t, "123", k.Number())
	assert.True(t, k.CheckDigitOK())
}

func TestAccessKey_DigitoVerificadorInvalidoNoRechaza(t *testing.T) {
	k, err := sefaz.ParseAccessKey(keyNFe[:43] + "0")
	require.NoError(t, err, "la SEFAZ es la autoridad sobre la validez")
	assert.False(t, k.CheckDigitOK())
}

func TestParseDocumentFamily(t *testing.T) {
	f, err := sefaz.ParseDocumentFamily("nfe")
	require.NoError(t, err)
	assert.Equal(t, sefaz.FamilyNFe, f)

	f, err = sefaz.ParseDocumentFamily(" CTe ")
	require.NoError(t, err)
	assert.Equal(t, sefaz.FamilyCTe, f)

	_, err = sefaz.ParseDocumentFamily("MDFE")
	assert.True(t, errors.Is(err, sefaz.ErrInvalidFamily))
}

func TestParseEnvironment(t *testing.T) {
	env, err := sefaz.ParseEnvironment(1)
	require.NoError(t, err)
	assert.Equal(t, sefaz.Production, env)

	env, err = sefaz.ParseEnvironment(2)
	require.NoError(t, err)
	assert.Equal(t, sefaz.Staging, env)

	_, err = sefaz.ParseEnvironment(3)
	assert.True(t, errors.Is(err, sefaz.ErrInvalidEnvironment))
}

func TestParseTaxID(t *testing.T) {
	id, err := sefaz.ParseTaxID("11.222.333/0001-81")
	require.NoError(t, err)
	assert.Equal(t, sefaz.TaxID("11222333000181"), id)

	_, err = sefaz.ParseTaxID("1122233300018")
	assert.True(t, errors.Is(err, sefaz.ErrInvalidTaxID))
}
