// Package catalog holds the static product list the assistant sells.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sahilm/fuzzy"
	"gopkg.in/yaml.v3"

	"github.com/congelados/vendedor/internal/textnorm"
)

// ErrInvalidProduct is returned when a catalog definition breaks an invariant.
var ErrInvalidProduct = errors.New("invalid product")

// Product is one catalog entry. Price is in whole currency units.
type Product struct {
	Key         string   `yaml:"key" json:"key"`
	Name        string   `yaml:"name" json:"name"`
	Price       int64    `yaml:"price" json:"price"`
	Description string   `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string   `yaml:"category,omitempty" json:"category,omitempty"`
	Aliases     []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
}

// Definition is the on-disk shape of a catalog file.
type Definition struct {
	Products   []Product `yaml:"products"`
	Promotions []string  `yaml:"promotions"`
}

type aliasEntry struct {
	alias string
	key   string
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	products   []Product
	byKey      map[string]int
	aliases    map[string]string
	ordered    []aliasEntry
	promotions []string
	currency   string
}

// New validates def and builds a catalog. currency prefixes rendered amounts.
func New(def Definition, currency string) (*Catalog, error) {
	if len(def.Products) == 0 {
		return nil, fmt.Errorf("%w: catalog is empty", ErrInvalidProduct)
	}
	c := &Catalog{
		byKey:      make(map[string]int, len(def.Products)),
		aliases:    map[string]string{},
		promotions: append([]string(nil), def.Promotions...),
		currency:   currency,
	}
	for _, p := range def.Products {
		p.Key = textnorm.Fold(p.Key)
		if p.Key == "" || strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("%w: key and name are required", ErrInvalidProduct)
		}
		if p.Price < 0 {
			return nil, fmt.Errorf("%w: %s has a negative price", ErrInvalidProduct, p.Key)
		}
		if _, dup := c.byKey[p.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key %s", ErrInvalidProduct, p.Key)
		}
		c.byKey[p.Key] = len(c.products)

		aliases := make([]string, 0, len(p.Aliases)+1)
		for _, a := range append(append([]string(nil), p.Aliases...), p.Key) {
			a = textnorm.Fold(a)
			if a == "" {
				continue
			}
			if owner, ok := c.aliases[a]; ok {
				if owner != p.Key {
					return nil, fmt.Errorf("%w: alias %q used by %s and %s", ErrInvalidProduct, a, owner, p.Key)
				}
				continue
			}
			c.aliases[a] = p.Key
			c.ordered = append(c.ordered, aliasEntry{alias: a, key: p.Key})
			aliases = append(aliases, a)
		}
		p.Aliases = aliases
		c.products = append(c.products, p)
	}
	return c, nil
}

// Load reads a YAML catalog from path; an empty path yields the built-in catalog.
func Load(path, currency string) (*Catalog, error) {
	if strings.TrimSpace(path) == "" {
		return New(DefaultDefinition(), currency)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	return New(def, currency)
}

// Resolve maps a product name or alias to its canonical key: exact key, then exact alias,
// then the first alias contained in the fragment, in catalog order.
func (c *Catalog) Resolve(nameOrAlias string) (string, bool) {
	t := textnorm.Fold(nameOrAlias)
	if t == "" {
		return "", false
	}
	if _, ok := c.byKey[t]; ok {
		return t, true
	}
	if key, ok := c.aliases[t]; ok {
		return key, true
	}
	for _, e := range c.ordered {
		if strings.Contains(t, e.alias) {
			return e.key, true
		}
	}
	return "", false
}

// Get returns the product stored under key.
func (c *Catalog) Get(key string) (Product, bool) {
	i, ok := c.byKey[key]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// All returns every product in catalog order.
func (c *Catalog) All() []Product {
	return append([]Product(nil), c.products...)
}

// Len reports the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Aliases returns every alias in resolution order, paired with its product key.
func (c *Catalog) Aliases() [][2]string {
	out := make([][2]string, 0, len(c.ordered))
	for _, e := range c.ordered {
		out = append(out, [2]string{e.alias, e.key})
	}
	return out
}

// Promotions returns the active promotions.
func (c *Catalog) Promotions() []string {
	return append([]string(nil), c.promotions...)
}

// Money renders an amount with the configured currency symbol, without digit grouping.
func (c *Catalog) Money(amount int64) string {
	return c.currency + strconv.FormatInt(amount, 10)
}

// Suggest returns up to n products to offer instead of something we do not sell. Products
// whose name fuzzily matches text come first, the rest follow in catalog order.
func (c *Catalog) Suggest(text string, n int) []Product {
	if n <= 0 {
		return nil
	}
	names := make([]string, len(c.products))
	for i, p := range c.products {
		names[i] = textnorm.Fold(p.Name)
	}
	picked := make([]Product, 0, n)
	seen := map[int]bool{}
	for _, tok := range textnorm.Tokens(textnorm.Fold(text)) {
		if len(tok) < 4 {
			continue
		}
		for _, m := range fuzzy.Find(tok, names) {
			if len(picked) == n {
				return picked
			}
			if !seen[m.Index] {
				seen[m.Index] = true
				picked = append(picked, c.products[m.Index])
			}
		}
	}
	for i, p := range c.products {
		if len(picked) == n {
			break
		}
		if !seen[i] {
			seen[i] = true
			picked = append(picked, p)
		}
	}
	return picked
}
