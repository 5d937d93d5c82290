package fastpath

import (
	"regexp"

	"github.com/congelados/vendedor/internal/intent"
)

// rule patterns run against folded text (lower case, no diacritics), so `\b` behaves.
type rule struct {
	name     string
	patterns []*regexp.Regexp
	build    func(c *Classifier, folded string) (intent.Resolved, bool)
}

func (r rule) matches(folded string) bool {
	for _, p := range r.patterns {
		if p.MatchString(folded) {
			return true
		}
	}
	return false
}

func patterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, e := range exprs {
		out[i] = regexp.MustCompile(e)
	}
	return out
}

var (
	unavailablePattern = regexp.MustCompile(`\b(bebidas?|gaseosas?|jugos?|agua|refrescos?|cervezas?|licor|vinos?|cafe|postres?|helados?)\b`)
	transferPattern    = regexp.MustCompile(`\b(transferencia|transferir|transfiero|nequi|daviplata)\b`)
	cashPattern        = regexp.MustCompile(`\b(efectivo|cash|contraentrega|contra entrega)\b`)
)

func defaultRules() []rule {
	return []rule{
		{
			name: "saludo",
			patterns: patterns(
				`^(hola|hey|hi|hello|ola|buen[oa]s(\s*(dias|tardes|noches))?)\b`,
				`\b(que\s*tal|como\s*estas|saludos|buen[oa]s)\b`,
			),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindGreeting, Reply: c.Greeting()}, true
			},
		},
		{
			name:     "promociones",
			patterns: patterns(`\b(promociones?|promos?|ofertas?|descuentos?|especiales|combos?)\b`),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindPromotions, Reply: c.Promotions()}, true
			},
		},
		{
			name:     "menu",
			patterns: patterns(`\b(menu|carta|productos|catalogo|que\s*(tienes|vendes|venden))\b`),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindMenu, Reply: c.Menu()}, true
			},
		},
		{
			name:     "no_disponible",
			patterns: []*regexp.Regexp{unavailablePattern},
			build: func(c *Classifier, folded string) (intent.Resolved, bool) {
				what := unavailablePattern.FindString(folded)
				return intent.Resolved{Kind: intent.KindUnavailable, Topic: what, Reply: c.Unavailable(what)}, true
			},
		},
		{
			name:     "entrega_domicilio",
			patterns: patterns(`\b(domicilio|envio|delivery|a mi casa|entregar|mandar|enviar)\b`),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindDelivery, Delivery: intent.DeliveryHome, Reply: c.HomeDelivery()}, true
			},
		},
		{
			name:     "entrega_tienda",
			patterns: patterns(`\b(recoger|recojer|tienda|punto de recogida|pick\s*up|pasar por|buscar)\b`),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindDelivery, Delivery: intent.DeliveryPickup, Reply: c.Pickup()}, true
			},
		},
		{
			// Only fires when the message names a product; "cancela todo" goes to the resolver.
			name:     "eliminar",
			patterns: patterns(`\b(quita\w*|saca\w*|elimina\w*|cancela\w*|borra\w*)\b`),
			build: func(c *Classifier, folded string) (intent.Resolved, bool) {
				keys := c.productsIn(folded)
				if len(keys) == 0 {
					return intent.Resolved{}, false
				}
				return intent.Resolved{Kind: intent.KindRemove, Remove: keys}, true
			},
		},
		{
			name:     "total",
			patterns: patterns(`\b(total|cuanto\s+(va|debo|es|cuesta|seria|sale)|suma|valor)\b`),
			build: func(*Classifier, string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindTotal}, true
			},
		},
		{
			name: "pago",
			patterns: []*regexp.Regexp{
				transferPattern,
				cashPattern,
				regexp.MustCompile(`\b(pago|pagar|pagos|medios? de pago|metodos? de pago)\b`),
			},
			build: func(_ *Classifier, folded string) (intent.Resolved, bool) {
				res := intent.Resolved{Kind: intent.KindPayment}
				switch {
				case transferPattern.MatchString(folded):
					res.Payment = intent.PaymentTransfer
				case cashPattern.MatchString(folded):
					res.Payment = intent.PaymentCash
				}
				return res, true
			},
		},
		{
			// Short assents only count at the start of the message: "cuanto vale" and
			// "y si me agregas" are not confirmations.
			name: "confirmar",
			patterns: patterns(
				`\b(confirmar|confirmo|confirma|confirmalo|acepto|de acuerdo)\b`,
				`^(si|ok|okay|vale|listo|dale)\b`,
			),
			build: func(*Classifier, string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindConfirm}, true
			},
		},
		{
			name:     "despedida",
			patterns: patterns(`\b(gracias|chao|adios|hasta luego|bye|nos vemos|finalizar|terminar)\b`),
			build: func(c *Classifier, _ string) (intent.Resolved, bool) {
				return intent.Resolved{Kind: intent.KindFarewell, Reply: c.Farewell()}, true
			},
		},
	}
}
