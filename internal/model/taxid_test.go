package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanTaxID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"formatted", "11.222.333/0001-81", "11222333000181"},
		{"digits", "11222333000181", "11222333000181"},
		{"spaces and letters", " 11 222 abc 333 0001 81 ", "11222333000181"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, CleanTaxID(tt.in))
		})
	}
}

func TestValidTaxID(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidTaxID("11.222.333/0001-81"))
	assert.True(t, ValidTaxID("11222333000181"))
	assert.False(t, ValidTaxID("1122233300018"))
	assert.False(t, ValidTaxID("112223330001812"))
	assert.False(t, ValidTaxID(""))
}

func TestIsTaxID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want bool
	}{
		{"11222333000181", true},
		{"  11.222.333/0001-81 ", true},
		{"Olá, tudo bem?", false},
		{"meu cnpj é 11222333000181", true},
		{"tenho 2 lojas", false},
		{"11.222.333/0001", false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, IsTaxID(tt.text))
		})
	}
}

func TestFormatTaxID(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "11.222.333/0001-81", FormatTaxID("11222333000181"))
	assert.Equal(t, "123", FormatTaxID("123"))
}
