package resolver

import (
	"fmt"
	"strings"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/intent"
)

const replyWordBudget = 100

func systemPrompt() string {
	return `Eres "Tu Vendedor Inteligente" para "Congelados Deliciosos". Responde cálido y profesional.
Devuelve SOLO un objeto JSON que cumpla este esquema, sin texto adicional:
` + intent.SchemaJSON()
}

func buildPrompt(cat *catalog.Catalog, text string, sc Context) string {
	var b strings.Builder

	b.WriteString("CATÁLOGO (SOLO estos productos):\n")
	for _, p := range cat.All() {
		fmt.Fprintf(&b, "%s - %s", p.Name, cat.Money(p.Price))
		if p.Description != "" {
			fmt.Fprintf(&b, " (%s)", p.Description)
		}
		b.WriteByte('\n')
	}

	b.WriteString("\nPEDIDO ACTUAL:\n")
	if strings.TrimSpace(sc.CartSummary) == "" {
		b.WriteString("Ninguno.\n")
	} else {
		b.WriteString(sc.CartSummary)
		b.WriteByte('\n')
	}

	if len(sc.History) > 0 {
		b.WriteString("\nCONVERSACIÓN RECIENTE:\n")
		for _, line := range sc.History {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	fmt.Fprintf(&b, "\nMENSAJE DEL CLIENTE:\n%q\n", text)

	fmt.Fprintf(&b, `
REGLAS:
- SOLO usar productos del catálogo, con su nombre exacto en "producto"
- Si preguntan por algo no disponible, usa "no_disponible" y sugiere 1-3 alternativas del catálogo
- Para cambiar cantidades usa "modificar"; para quitar productos usa "eliminar"
- Respuestas breves (máx %d palabras), con emojis
- Termina con una pregunta amable

Intenciones válidas: %s
`, replyWordBudget, kindList())
	return b.String()
}

func kindList() string {
	kinds := intent.Kinds()
	names := make([]string, len(kinds))
	for i, k := range kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
