package registry

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/sells-group/cnpj-enrich/internal/model"
	"github.com/sells-group/cnpj-enrich/pkg/brasilapi"
)

// Placeholders used when the registry omits a field.
const (
	UnknownStatus   = "DESCONHECIDA"
	UnknownActivity = "NÃO INFORMADO"
	UnknownAddress  = "ENDEREÇO NÃO INFORMADO"
)

// MapCompany converts a raw registry record into OfficialFacts. Several key
// spellings are accepted because registry mirrors disagree.
func MapCompany(c brasilapi.Company) model.OfficialFacts {
	return model.OfficialFacts{
		LegalName:    first(c, "razao_social", "razaoSocial"),
		TradeName:    first(c, "nome_fantasia", "nomeFantasia"),
		Status:       orDefault(first(c, "descricao_situacao_cadastral", "situacao"), UnknownStatus),
		ActivityCode: mainActivity(c),
		Address:      formatAddress(c),
	}
}

func mainActivity(c brasilapi.Company) string {
	if obj, ok := c["cnae_fiscal_principal"].(map[string]any); ok {
		return text(obj["codigo"]) + " - " + text(obj["descricao"])
	}
	if v := text(c["cnae_principal"]); v != "" {
		return v
	}
	if code := text(c["cnae_fiscal"]); code != "" {
		if desc := text(c["cnae_fiscal_descricao"]); desc != "" {
			return code + " - " + desc
		}
		return code
	}
	return UnknownActivity
}

func formatAddress(c brasilapi.Company) string {
	var parts []string
	for _, k := range []string{"logradouro", "numero", "complemento", "bairro", "municipio", "uf"} {
		if v := text(c[k]); v != "" {
			parts = append(parts, v)
		}
	}
	if cep := text(c["cep"]); cep != "" {
		parts = append(parts, "CEP: "+cep)
	}
	if len(parts) == 0 {
		return UnknownAddress
	}
	return strings.Join(parts, ", ")
}

func first(c brasilapi.Company, keys ...string) string {
	for _, k := range keys {
		if v := text(c[k]); v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// text renders a JSON scalar as a string. Missing values, empty strings and
// numeric zero render as "". Integral numbers have no decimal point.
func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		if n, err := t.Int64(); err == nil {
			if n == 0 {
				return ""
			}
			return strconv.FormatInt(n, 10)
		}
		f, err := t.Float64()
		if err != nil {
			return t.String()
		}
		return formatFloat(f)
	case float64:
		return formatFloat(t)
	case int:
		if t == 0 {
			return ""
		}
		return strconv.Itoa(t)
	case bool:
		if !t {
			return ""
		}
		return "true"
	default:
		return ""
	}
}

func formatFloat(f float64) string {
	if f == 0 {
		return ""
	}
	if f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
