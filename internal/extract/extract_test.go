package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/intent"
)

func TestItems(t *testing.T) {
	e := New(catalog.Default())

	tests := []struct {
		name string
		text string
		want []intent.Item
	}{
		{
			name: "digits and number word keep order",
			text: "quiero 2 empanadas y una pizza personal",
			want: []intent.Item{{Product: "empanadas", Quantity: 2}, {Product: "pizza personal", Quantity: 1}},
		},
		{
			name: "multi word product is not shadowed",
			text: "Dame 3 pasteles de pollo",
			want: []intent.Item{{Product: "pasteles de pollo", Quantity: 3}},
		},
		{
			name: "dozen words",
			text: "media docena de empanadas, una docena de deditos",
			want: []intent.Item{{Product: "empanadas", Quantity: 6}, {Product: "deditos de mozzarella", Quantity: 12}},
		},
		{
			name: "same product merges",
			text: "2 empanadas, 3 empanadas",
			want: []intent.Item{{Product: "empanadas", Quantity: 5}},
		},
		{
			name: "verb without quantity defaults to one",
			text: "me gustaría pizza",
			want: []intent.Item{{Product: "pizza personal", Quantity: 1}},
		},
		{
			name: "bare phrase",
			text: "Pizzas!",
			want: []intent.Item{{Product: "pizza personal", Quantity: 1}},
		},
		{
			name: "accented input",
			text: "quiero dos EMPANADAS",
			want: []intent.Item{{Product: "empanadas", Quantity: 2}},
		},
		{
			name: "zero becomes one",
			text: "0 empanadas",
			want: []intent.Item{{Product: "empanadas", Quantity: 1}},
		},
		{
			name: "quantity above the cap",
			text: "quiero 5000 empanadas",
			want: []intent.Item{{Product: "empanadas", Quantity: intent.MaxQuantity}},
		},
		{
			name: "numeral beyond int64",
			text: "quiero 90000000000000000000000 empanadas",
			want: []intent.Item{{Product: "empanadas", Quantity: intent.MaxQuantity}},
		},
		{
			name: "merge stops at the cap",
			text: "600 empanadas, 600 empanadas",
			want: []intent.Item{{Product: "empanadas", Quantity: intent.MaxQuantity}},
		},
		{
			name: "unknown product",
			text: "quiero pollo",
		},
		{
			name: "question is left to the resolver",
			text: "¿qué tienen las empanadas?",
		},
		{
			name: "cart edits are left to the resolver",
			text: "cambia las empanadas a 4",
		},
		{
			name: "negation",
			text: "no quiero pizza",
		},
		{
			name: "empty",
			text: "   ",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := e.Items(tt.text)
			if len(tt.want) == 0 {
				if len(got) != 0 {
					t.Fatalf("expected no items, got %v", got)
				}
				return
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Items(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

func TestItemsAliasScanFallback(t *testing.T) {
	e := New(catalog.Default())
	// "x2" keeps every clause pattern from matching, so the whole text is scanned.
	got := e.Items("mozzarella x2 porfa")
	want := []intent.Item{{Product: "deditos de mozzarella", Quantity: 1}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}
