package intent

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubProducts map[string]string

func (s stubProducts) Resolve(name string) (string, bool) {
	key, ok := s[name]
	return key, ok
}

var products = stubProducts{
	"empanadas":      "empanadas",
	"empanada":       "empanadas",
	"pizza personal": "pizza personal",
}

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

func TestDecodeOrder(t *testing.T) {
	data := []byte(`{
		"intencion": "pedido",
		"items": [
			{"producto": "empanadas", "cantidad": 2},
			{"producto": "pizza personal"},
			{"producto": "empanada", "cantidad": "3"},
			{"producto": "sushi", "cantidad": 1},
			{"producto": "pizza personal", "cantidad": "muchas"},
			"no es un objeto",
			{"producto": "pizza personal", "cantidad": -4}
		],
		"metodo": "transferencia",
		"modo": "tienda",
		"respuesta": "¡Listo! 🛒",
		"extra": "ignored"
	}`)
	got, err := Decode(data, products, quiet)
	require.NoError(t, err)

	assert.Equal(t, KindOrder, got.Kind)
	assert.Equal(t, []Item{
		{Product: "empanadas", Quantity: 5},
		{Product: "pizza personal", Quantity: 2},
	}, got.Items)
	assert.Equal(t, PaymentTransfer, got.Payment)
	assert.Equal(t, DeliveryPickup, got.Delivery)
	assert.Equal(t, "¡Listo! 🛒", got.Reply)
	assert.Equal(t, SourceLLM, got.Source)
}

func TestDecodeRemoveFallsBackToItems(t *testing.T) {
	got, err := Decode([]byte(`{"intencion":"eliminar","items":[{"producto":"pizza personal"}]}`), products, quiet)
	require.NoError(t, err)
	assert.Equal(t, []string{"pizza personal"}, got.Remove)

	got, err = Decode([]byte(`{"intencion":"eliminar","eliminar":["empanada", {"producto":"pizza personal"}, 7]}`), products, quiet)
	require.NoError(t, err)
	assert.Equal(t, []string{"empanadas", "pizza personal"}, got.Remove)
}

func TestDecodeRejectsUnknownKind(t *testing.T) {
	_, err := Decode([]byte(`{"intencion":"bailar"}`), products, quiet)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidPayload))

	_, err = Decode([]byte(`not json`), products, quiet)
	assert.True(t, errors.Is(err, ErrInvalidPayload))
}

func TestParseEnums(t *testing.T) {
	m, ok := ParsePaymentMethod(" Efectivo ")
	assert.True(t, ok)
	assert.Equal(t, PaymentCash, m)
	assert.Equal(t, "efectivo", m.Label())

	d, ok := ParseDeliveryMode("domicilio")
	assert.True(t, ok)
	assert.Equal(t, DeliveryHome, d)

	_, ok = ParseDeliveryMode("")
	assert.False(t, ok)
}

func TestSchemaListsEveryKind(t *testing.T) {
	raw := SchemaJSON()
	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	for _, k := range Kinds() {
		assert.Contains(t, raw, `"`+string(k)+`"`)
	}
}

func TestMergeItems(t *testing.T) {
	got := MergeItems([]Item{{"a", 1}, {"b", 2}, {"a", 3}})
	assert.Equal(t, []Item{{"a", 4}, {"b", 2}}, got)
}

func TestMergeItemsCapsQuantity(t *testing.T) {
	got := MergeItems([]Item{{"a", 600}, {"b", 1 << 62}, {"a", 600}, {"c", 0}})
	assert.Equal(t, []Item{{"a", MaxQuantity}, {"b", MaxQuantity}, {"c", 1}}, got)
}

func TestDecodeBoundsQuantity(t *testing.T) {
	tests := []struct {
		name     string
		cantidad string
		want     int
	}{
		{name: "zero", cantidad: `0`, want: 1},
		{name: "at the cap", cantidad: `999`, want: MaxQuantity},
		{name: "above the cap", cantidad: `1000`, want: MaxQuantity},
		{name: "beyond int64", cantidad: `9e30`, want: MaxQuantity},
		{name: "numeric string beyond int64", cantidad: `"90000000000000000000000"`, want: MaxQuantity},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := []byte(`{"intencion":"pedido","items":[{"producto":"empanadas","cantidad":` + tt.cantidad + `}],"respuesta":"ok"}`)
			got, err := Decode(data, products, quiet)
			require.NoError(t, err)
			assert.Equal(t, []Item{{Product: "empanadas", Quantity: tt.want}}, got.Items)
		})
	}
}
