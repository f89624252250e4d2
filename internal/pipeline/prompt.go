package pipeline

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

// maxExcerpt is the number of characters of result content shown to the model.
const maxExcerpt = 1200

// nonOfficialPatterns mark URLs that belong to directories, marketplaces or
// social networks rather than to the company itself.
var nonOfficialPatterns = []string{
	"linkedin.com",
	"facebook.com",
	"instagram.com",
	"twitter.com",
	"reclameaqui.com.br",
	"paginasamarelas.com.br",
	"guiamais.com.br",
	"apontador.com.br",
	"mercadolivre.com.br",
	"amazon.com.br",
	"magazineluiza.com.br",
	"americanas.com.br",
	"casasbahia.com.br",
	"extra.com.br",
	"wikipedia.org",
	"google.com",
	"youtube.com",
}

const extractionInstructions = `Você é Rose, assistente especializada em validar a presença digital de empresas brasileiras a partir do CNPJ.

Seu trabalho NÃO é adivinhar. Use somente informações que:
- aparecem explicitamente nos resultados de busca fornecidos
- estão claramente associadas à empresa consultada

## Formato de saída

Responda APENAS com um JSON válido:

{
  "site": string | null,
  "email": string | null,
  "instagram": string | null,
  "logo": string | null,
  "fontes": string[]
}

## Regras obrigatórias

1. Nunca invente dados.
2. Nunca gere emails por padrão (por exemplo contato@empresa.com.br).
3. Nunca trate um perfil como oficial sem evidência.
4. Associe cada dado a uma URL real presente nos resultados.
5. Na dúvida, retorne null.

## Site oficial (prioridade máxima)

Considere oficial o site cujo domínio contém o nome da empresa ou do nome fantasia,
cujo conteúdo descreve a empresa e sua atividade, e que não é marketplace,
diretório, rede social ou portal de notícias. Resultados marcados com ⭐ são candidatos
prioritários.

## Instagram

Aceite apenas perfis cujo usuário corresponde ao nome da empresa ou cuja bio cita a
empresa. Caso contrário, null.

## Email

Extraia apenas emails visíveis no site oficial ou em página de contato institucional.
Emails genéricos ou deduzidos são proibidos.

## Logo

Prefira og:image do site oficial ou uma URL absoluta de imagem citada no conteúdo.
Sem evidência, retorne null.

Precisão é mais importante que completude. Se nada for encontrado, responda:

{"site": null, "email": null, "instagram": null, "logo": null, "fontes": []}`

const personaPrompt = `Você é Rose, uma assistente simpática especializada em encontrar informações sobre empresas brasileiras a partir do CNPJ. 🌹

Como você conversa:
- de forma natural, calorosa e acessível, sem soar robótica
- com precisão quando fala de dados e sempre citando as fontes quando relevante
- com otimismo realista: quando não encontra algo, diz isso claramente
- usando emojis com moderação, especialmente 🌹

O que você faz:
- ajuda as pessoas a consultar empresas pelo CNPJ e explica como usar o sistema
- responde dúvidas sobre empresas, CNPJs e dados cadastrais
- conversa naturalmente sobre assuntos relacionados

Se a pessoa cumprimentar, cumprimente de volta. Adapte a resposta ao contexto da conversa.`

// looksOfficial reports whether raw plausibly belongs to the company's own site.
func looksOfficial(raw string) bool {
	u := strings.ToLower(raw)
	for _, p := range nonOfficialPatterns {
		if strings.Contains(u, p) {
			return false
		}
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		return false
	}
	return !isXHost(u)
}

// isXHost matches x.com and its subdomains by hostname.
func isXHost(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	host := parsed.Hostname()
	return host == "x.com" || strings.HasSuffix(host, ".x.com")
}

// prioritize orders results official-looking first, then by score.
func prioritize(results []model.SearchResult) []model.SearchResult {
	out := append([]model.SearchResult(nil), results...)
	sort.SliceStable(out, func(i, j int) bool {
		oi, oj := looksOfficial(out[i].URL), looksOfficial(out[j].URL)
		if oi != oj {
			return oi
		}
		return out[i].Score > out[j].Score
	})
	return out
}

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= maxExcerpt {
		return s
	}
	return string(r[:maxExcerpt]) + "..."
}

func buildResultsBlock(results []model.SearchResult) string {
	if len(results) == 0 {
		return "Nenhum resultado encontrado."
	}

	var b strings.Builder
	for i, r := range prioritize(results) {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "### Resultado %d", i+1)
		if looksOfficial(r.URL) {
			b.WriteString(" ⭐ (Possível Site Oficial)")
		}
		fmt.Fprintf(&b, "\nTítulo: %s\nURL: %s\nScore: %.2f\nConteúdo: %s", r.Title, r.URL, r.Score, excerpt(r.Content))
	}
	return b.String()
}

// buildExtractionPrompt renders the full prompt for one extraction call.
func buildExtractionPrompt(f model.OfficialFacts, results []model.SearchResult) string {
	var b strings.Builder
	b.WriteString(extractionInstructions)
	b.WriteString("\n\n## Dados da Empresa\n")
	fmt.Fprintf(&b, "Razão Social: %s\n", f.LegalName)
	if f.TradeName != "" {
		fmt.Fprintf(&b, "Nome Fantasia: %s\n", f.TradeName)
	}
	fmt.Fprintf(&b, "CNAE: %s\n", f.ActivityCode)
	fmt.Fprintf(&b, "Endereço: %s\n\n", f.Address)

	b.WriteString("## Resultados de Busca Web (score >= 0.8)\n\n")
	b.WriteString(buildResultsBlock(results))
	b.WriteString("\n\n")
	b.WriteString(`Ao escolher o site:
1. Procure primeiro URLs que pareçam o domínio principal da empresa.
2. Resultados marcados com ⭐ têm prioridade.
3. Se uma URL parece ser o site oficial, use-a mesmo com pouco conteúdo.
4. Sem site oficial claro, retorne null.

Extraia APENAS informações presentes nas fontes acima.`)
	return b.String()
}

// buildChatPrompt renders the persona prompt with up to historyWindow prior turns.
func buildChatPrompt(message string, history []model.ChatTurn) string {
	if len(history) > historyWindow {
		history = history[len(history)-historyWindow:]
	}

	var b strings.Builder
	b.WriteString(personaPrompt)
	b.WriteString("\n\n")
	if len(history) > 0 {
		lines := make([]string, 0, len(history))
		for _, t := range history {
			who := "Rose"
			if t.Role == model.RoleUser {
				who = "Usuário"
			}
			lines = append(lines, who+": "+t.Content)
		}
		b.WriteString("Histórico da conversa:\n")
		b.WriteString(strings.Join(lines, "\n\n"))
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Usuário: %s\n\nRose:", message)
	return b.String()
}
