// Package extract detects ordered products and quantities directly in customer text,
// without the language model.
package extract

import (
	"errors"
	"regexp"
	"strconv"
	"strings"

	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/textnorm"
)

// Products is the catalog view the extractor needs.
type Products interface {
	Resolve(nameOrAlias string) (string, bool)
	Aliases() [][2]string
}

const phrase = `(\p{L}[\p{L} ]*)`

var (
	digitPattern  = regexp.MustCompile(`(\d+)\s+` + phrase)
	wordPattern   = regexp.MustCompile(`\b(` + textnorm.NumberWordPattern + `)\s+` + phrase)
	verbPattern   = regexp.MustCompile(`\b(?:quiero|quisiera|dame|deme|ponme|ponle|agrega|agregame|agregar|anade|anademe|me gustaria|deseo|regalame|mandame|pideme)\s+(?:(\d+)\s+)?` + phrase)
	barePattern   = regexp.MustCompile(`^(?:(\d+)\s+)?` + phrase + `$`)
	editorPattern = regexp.MustCompile(`\b(?:no|sin|nada de|cambia\w*|modifica\w*|en vez de|en lugar de|quita\w*|saca\w*|elimina\w*|cancela\w*|borra\w*)\b`)
)

type aliasMatcher struct {
	re  *regexp.Regexp
	key string
}

// Extractor runs the extraction cascade. It is immutable and safe for concurrent use.
type Extractor struct {
	products Products
	aliases  []aliasMatcher
}

// New builds an Extractor over products.
func New(products Products) *Extractor {
	e := &Extractor{products: products}
	for _, pair := range products.Aliases() {
		e.aliases = append(e.aliases, aliasMatcher{
			re:  regexp.MustCompile(`\b` + regexp.QuoteMeta(pair[0]) + `\b`),
			key: pair[1],
		})
	}
	return e
}

// Items returns the products and quantities named in text, merged by product in first-seen
// order. Each clause ("2 empanadas", "una pizza") is matched by the first pattern that yields
// a product: digits, number word, order verb, then a bare phrase. Messages that edit the cart
// (remove, replace, negate) yield nothing so a later stage can interpret them.
func (e *Extractor) Items(text string) []intent.Item {
	folded := textnorm.Fold(text)
	if folded == "" || editorPattern.MatchString(folded) {
		return nil
	}
	question := textnorm.IsQuestion(folded)

	var items []intent.Item
	for _, clause := range textnorm.SplitClauses(folded) {
		if it, ok := e.clause(clause, question); ok {
			items = append(items, it)
		}
	}
	if len(items) == 0 && !question {
		if it, ok := e.scanAliases(folded); ok {
			items = append(items, it)
		}
	}
	return intent.MergeItems(items)
}

func (e *Extractor) clause(clause string, question bool) (intent.Item, bool) {
	if m := digitPattern.FindStringSubmatch(clause); m != nil {
		if it, ok := e.item(m[2], digits(m[1])); ok {
			return it, true
		}
	}
	if m := wordPattern.FindStringSubmatch(clause); m != nil {
		n, _ := textnorm.NumberWord(m[1])
		if it, ok := e.item(m[2], n); ok {
			return it, true
		}
	}
	if m := verbPattern.FindStringSubmatch(clause); m != nil {
		if it, ok := e.item(m[2], digits(m[1])); ok {
			return it, true
		}
	}
	if question {
		return intent.Item{}, false
	}
	if m := barePattern.FindStringSubmatch(clause); m != nil {
		return e.item(m[2], digits(m[1]))
	}
	return intent.Item{}, false
}

func (e *Extractor) item(phrase string, qty int) (intent.Item, bool) {
	key, ok := e.matchPhrase(phrase)
	if !ok {
		return intent.Item{}, false
	}
	return intent.Item{Product: key, Quantity: intent.ClampQuantity(qty)}, true
}

// matchPhrase tries the leading 3, 2 and 1 word windows before scanning single tokens, so
// "pasteles de pollo" resolves as a whole before any one of its words is tried alone.
func (e *Extractor) matchPhrase(phrase string) (string, bool) {
	tokens := textnorm.Tokens(phrase)
	for _, span := range []int{3, 2, 1} {
		if span > len(tokens) {
			continue
		}
		if key, ok := e.products.Resolve(strings.Join(tokens[:span], " ")); ok {
			return key, true
		}
	}
	for _, tok := range tokens {
		if key, ok := e.products.Resolve(tok); ok {
			return key, true
		}
	}
	return "", false
}

func (e *Extractor) scanAliases(folded string) (intent.Item, bool) {
	for _, a := range e.aliases {
		if a.re.MatchString(folded) {
			return intent.Item{Product: a.key, Quantity: 1}, true
		}
	}
	return intent.Item{}, false
}

// digits parses a quantity, clamped to [1, intent.MaxQuantity].
func digits(s string) int {
	if s == "" {
		return 1
	}
	n, err := strconv.Atoi(s)
	if errors.Is(err, strconv.ErrRange) {
		return intent.MaxQuantity
	}
	if err != nil {
		return 1
	}
	return intent.ClampQuantity(n)
}
