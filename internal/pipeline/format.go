package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/cnpj-enrich/internal/model"
)

const noFactsMessage = "Desculpe, não consegui encontrar dados oficiais para este CNPJ. Verifique se o CNPJ está correto."

// Format converts the final state into the public response shape.
func Format(s model.State) model.Response {
	resp := model.Response{
		TaxID:     s.TaxID,
		Sources:   append([]string{}, s.Sources...),
		RequestID: s.RequestID,
		Message:   Message(s),
	}
	if f := s.Facts; f != nil {
		resp.LegalName = model.StrPtr(f.LegalName)
		resp.TradeName = model.StrPtr(f.TradeName)
		resp.Status = model.StrPtr(f.Status)
		resp.ActivityCode = model.StrPtr(f.ActivityCode)
		resp.Address = model.StrPtr(f.Address)
	}
	if p := s.Presence; p != nil {
		c := p.Clone()
		resp.Site = c.Site
		resp.Email = c.Email
		resp.Instagram = c.Instagram
		resp.Logo = c.Logo
	}
	return resp
}

// Message renders the human-readable summary shown with a response.
func Message(s model.State) string {
	if s.Facts == nil || s.Facts.LegalName == "" {
		return noFactsMessage
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Encontrei informações sobre %s! 🌹\n\n", s.Facts.LegalName)

	if s.Presence != nil && !s.Presence.Empty() {
		b.WriteString("Também encontrei algumas informações sobre a presença digital da empresa:\n")
		if v := model.Deref(s.Presence.Site); v != "" {
			fmt.Fprintf(&b, "- Site: %s\n", v)
		}
		if v := model.Deref(s.Presence.Email); v != "" {
			fmt.Fprintf(&b, "- Email: %s\n", v)
		}
		if v := model.Deref(s.Presence.Instagram); v != "" {
			fmt.Fprintf(&b, "- Instagram: %s\n", v)
		}
	} else {
		b.WriteString("Não encontrei informações sobre presença digital (site, email, Instagram) para esta empresa.")
	}

	if n := len(s.Sources); n > 0 {
		fmt.Fprintf(&b, "\n\n📚 Fontes consultadas: %d fonte(s)", n)
	}
	return b.String()
}
