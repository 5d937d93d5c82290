package catalog

// DefaultDefinition is the built-in "Congelados Deliciosos" catalog.
func DefaultDefinition() Definition {
	return Definition{
		Products: []Product{
			{
				Key:         "empanadas",
				Name:        "Empanadas",
				Price:       1500,
				Description: "Crujientes rellenas de carne o pollo",
				Category:    "popular",
				Aliases:     []string{"empanada", "empanadas", "empana"},
			},
			{
				Key:         "pasteles de pollo",
				Name:        "Pasteles de pollo",
				Price:       2500,
				Description: "Suaves y con verduras frescas",
				Category:    "popular",
				Aliases:     []string{"pastel", "pastel de pollo", "pasteles"},
			},
			{
				Key:         "pizza personal",
				Name:        "Pizza personal",
				Price:       5900,
				Description: "Deliciosa pizza individual",
				Category:    "especial",
				Aliases:     []string{"pizza", "pizza personal", "pizzas"},
			},
			{
				Key:         "deditos de mozzarella",
				Name:        "Deditos de mozzarella",
				Price:       2600,
				Description: "Queso mozzarella empanizado",
				Category:    "aperitivo",
				Aliases:     []string{"deditos", "deditos de mozzarella", "mozzarella"},
			},
		},
		Promotions: []string{
			"🎉 ¡Compra 10 empanadas y lleva 2 GRATIS!",
			"🔥 Pizza personal + deditos por solo $9900",
			"💫 3 pasteles de pollo por $6900",
			"👨‍👩‍👧‍👦 Combo familiar: 2 pizzas + deditos $15900",
		},
	}
}

// Default returns the built-in catalog priced in dollars.
func Default() *Catalog {
	c, err := New(DefaultDefinition(), "$")
	if err != nil {
		panic(err)
	}
	return c
}
