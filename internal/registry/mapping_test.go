package registry

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/pkg/brasilapi"
)

func decode(t *testing.T, raw string) brasilapi.Company {
	t.Helper()
	var c brasilapi.Company
	dec := json.NewDecoder(stringsReader(raw))
	dec.UseNumber()
	require.NoError(t, dec.Decode(&c))
	return c
}

func TestMapCompany_Minimal(t *testing.T) {
	c := decode(t, `{"razao_social":"Empresa Teste LTDA","descricao_situacao_cadastral":"ATIVA"}`)

	got := MapCompany(c)
	assert.Equal(t, model.OfficialFacts{
		LegalName:    "Empresa Teste LTDA",
		Status:       "ATIVA",
		ActivityCode: UnknownActivity,
		Address:      UnknownAddress,
	}, got)
}

func TestMapCompany_BrasilAPIShape(t *testing.T) {
	c := decode(t, `{
		"cnpj": "11222333000181",
		"razao_social": "ACME COMERCIO LTDA",
		"nome_fantasia": "ACME",
		"descricao_situacao_cadastral": "ATIVA",
		"cnae_fiscal": 4751201,
		"cnae_fiscal_descricao": "Comércio varejista especializado de equipamentos e suprimentos de informática",
		"logradouro": "RUA DAS FLORES",
		"numero": "100",
		"complemento": "",
		"bairro": "CENTRO",
		"municipio": "SAO PAULO",
		"uf": "SP",
		"cep": 1001000
	}`)

	got := MapCompany(c)
	assert.Equal(t, "ACME COMERCIO LTDA", got.LegalName)
	assert.Equal(t, "ACME", got.TradeName)
	assert.Equal(t, "ATIVA", got.Status)
	assert.Equal(t, "4751201 - Comércio varejista especializado de equipamentos e suprimentos de informática", got.ActivityCode)
	assert.Equal(t, "RUA DAS FLORES, 100, CENTRO, SAO PAULO, SP, CEP: 1001000", got.Address)
}

func TestMapCompany_ActivityVariants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{
			name: "nested principal",
			raw:  `{"cnae_fiscal_principal":{"codigo":"1234-5/67","descricao":"Atividade"}}`,
			want: "1234-5/67 - Atividade",
		},
		{
			name: "plain principal",
			raw:  `{"cnae_principal":"6201-5/01"}`,
			want: "6201-5/01",
		},
		{
			name: "flat code without description",
			raw:  `{"cnae_fiscal":6201501}`,
			want: "6201501",
		},
		{
			name: "nested wins over flat",
			raw:  `{"cnae_fiscal_principal":{"codigo":"1","descricao":"A"},"cnae_fiscal":2}`,
			want: "1 - A",
		},
		{
			name: "missing",
			raw:  `{}`,
			want: UnknownActivity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MapCompany(decode(t, tt.raw)).ActivityCode)
		})
	}
}

func TestMapCompany_FallbackKeys(t *testing.T) {
	c := decode(t, `{"razaoSocial":"Camel Case SA","nomeFantasia":"Camel","situacao":"BAIXADA"}`)

	got := MapCompany(c)
	assert.Equal(t, "Camel Case SA", got.LegalName)
	assert.Equal(t, "Camel", got.TradeName)
	assert.Equal(t, "BAIXADA", got.Status)
}

func TestMapCompany_EmptyStringsFallThrough(t *testing.T) {
	c := decode(t, `{"razao_social":"","razaoSocial":"Second","nome_fantasia":"","descricao_situacao_cadastral":""}`)

	got := MapCompany(c)
	assert.Equal(t, "Second", got.LegalName)
	assert.Empty(t, got.TradeName)
	assert.Equal(t, UnknownStatus, got.Status)
}

func TestText(t *testing.T) {
	assert.Equal(t, "", text(nil))
	assert.Equal(t, "abc", text(" abc "))
	assert.Equal(t, "123", text(json.Number("123")))
	assert.Equal(t, "", text(json.Number("0")))
	assert.Equal(t, "1.5", text(json.Number("1.5")))
	assert.Equal(t, "42", text(float64(42)))
	assert.Equal(t, "", text(map[string]any{}))
}
