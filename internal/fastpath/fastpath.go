// Package fastpath recognizes high-confidence intents with ordered keyword rules, so
// common messages never reach the language model.
package fastpath

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/reply"
	"github.com/congelados/vendedor/internal/textnorm"
)

// Options tunes generated replies.
type Options struct {
	Picker           reply.Picker
	Now              func() time.Time
	PolicyURL        string
	PromoProbability float64
}

// Classifier evaluates the rule list in order; the first rule that matches wins.
type Classifier struct {
	catalog *catalog.Catalog
	opts    Options
	rules   []rule
	aliases []aliasMatcher
}

type aliasMatcher struct {
	re  *regexp.Regexp
	key string
}

// New builds a classifier over cat.
func New(cat *catalog.Catalog, opts Options) *Classifier {
	if opts.Picker == nil {
		opts.Picker = reply.NewRandomPicker(0)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	c := &Classifier{catalog: cat, opts: opts}
	for _, pair := range cat.Aliases() {
		c.aliases = append(c.aliases, aliasMatcher{
			re:  regexp.MustCompile(`\b` + regexp.QuoteMeta(pair[0]) + `\b`),
			key: pair[1],
		})
	}
	c.rules = defaultRules()
	return c
}

// Classify returns the intent of the first matching rule.
func (c *Classifier) Classify(text string) (intent.Resolved, bool) {
	folded := strings.TrimLeft(textnorm.Fold(text), "¡¿ ")
	if folded == "" {
		return intent.Resolved{}, false
	}
	for _, r := range c.rules {
		if !r.matches(folded) {
			continue
		}
		res, ok := r.build(c, folded)
		if !ok {
			continue
		}
		res.Source = intent.SourceFastPath
		return res, true
	}
	return intent.Resolved{}, false
}

// RuleNames lists the rules in evaluation order.
func (c *Classifier) RuleNames() []string {
	names := make([]string, len(c.rules))
	for i, r := range c.rules {
		names[i] = r.name
	}
	return names
}

// Greeting renders a greeting with a time-of-day emoji, sometimes followed by a promotion.
func (c *Classifier) Greeting() string {
	tod := timeEmoji(c.opts.Now())
	base := c.opts.Picker.Pick([]string{
		"¡Hola! " + tod + " Bienvenido a Congelados Deliciosos",
		"¡Qué gusto verte por aquí! :wave: " + tod,
		"¡Hola! 🌟 Me da mucho gusto saludarte " + tod,
		"¡Bienvenido! 🥟 " + tod + " ¿Cómo estás?",
	})
	promos := c.catalog.Promotions()
	if len(promos) > 0 && c.opts.Picker.Chance(c.opts.PromoProbability) {
		promo := c.opts.Picker.Pick(promos)
		return fmt.Sprintf("%s. Por cierto, %s ¿Te interesa?", base, strings.ToLower(promo))
	}
	return base + ". ¿En qué puedo ayudarte hoy?"
}

// Farewell picks a closing line.
func (c *Classifier) Farewell() string {
	return c.opts.Picker.Pick([]string{
		"¡Gracias por tu visita! Hasta pronto :blush:",
		"¡Fue un placer ayudarte! ¡Vuelve pronto!",
		"¡Nos vemos! 🌈 Que tengas un día delicioso.",
		"¡Hasta luego! :dart: Espero verte de nuevo pronto.",
	})
}

// Menu renders every product with its price.
func (c *Classifier) Menu() string {
	lines := make([]string, 0, c.catalog.Len())
	for _, p := range c.catalog.All() {
		lines = append(lines, fmt.Sprintf("%s - %s", p.Name, c.catalog.Money(p.Price)))
	}
	return "Aquí va nuestro menú 🧊:\n\n" + reply.Bullets(lines) + "\n\n¿Te antoja algo? :yum:"
}

// Promotions renders the active promotions.
func (c *Classifier) Promotions() string {
	promos := c.catalog.Promotions()
	if len(promos) == 0 {
		return "Por ahora no tenemos promociones activas, pero nuestro menú está delicioso. ¿Te lo muestro? :blush:"
	}
	return "¡Claro! Tenemos estas promociones 🎉:\n\n" + reply.Bullets(promos) + "\n\n¿Alguna te llama la atención? :blush:"
}

// Unavailable apologizes for something not sold and offers up to three alternatives.
func (c *Classifier) Unavailable(what string) string {
	if what == "" {
		what = "ese producto"
	}
	suggested := c.catalog.Suggest(what, 3)
	names := make([]string, len(suggested))
	for i, p := range suggested {
		names[i] = strings.ToLower(p.Name)
	}
	return fmt.Sprintf("Por ahora no manejamos %s 😅. Pero te puedo recomendar %s, ¡son un hit! ¿Te gustaría agregar alguno? :yum:",
		what, joinSpanish(names))
}

// HomeDelivery is the home delivery notice with the data policy link.
func (c *Classifier) HomeDelivery() string {
	return fmt.Sprintf("🚚 Perfecto, envío a domicilio. Protegemos tus datos según nuestras políticas: %s. ¿Deseas confirmar el pedido? :white_check_mark:", c.opts.PolicyURL)
}

// Pickup is the in-store pickup acknowledgement.
func (c *Classifier) Pickup() string {
	return "🏪 Genial, recoger en tienda. ¿Confirmamos tu pedido ahora? :white_check_mark:"
}

// productsIn returns the distinct catalog keys whose aliases appear as words in folded.
func (c *Classifier) productsIn(folded string) []string {
	var keys []string
	seen := map[string]bool{}
	for _, a := range c.aliases {
		if !seen[a.key] && a.re.MatchString(folded) {
			seen[a.key] = true
			keys = append(keys, a.key)
		}
	}
	return keys
}

func timeEmoji(now time.Time) string {
	switch h := now.Hour(); {
	case h < 12:
		return "☀️"
	case h < 18:
		return "🌤️"
	default:
		return "🌙"
	}
}

func joinSpanish(words []string) string {
	switch len(words) {
	case 0:
		return "algo de nuestro menú"
	case 1:
		return words[0]
	}
	return strings.Join(words[:len(words)-1], ", ") + " o " + words[len(words)-1]
}
