// Package intent defines the classified purpose of a customer message.
package intent

import "strings"

// Kind identifies what a customer message asks for. Values match the wire names the
// language model returns.
type Kind string

const (
	KindGreeting       Kind = "saludo"
	KindMenu           Kind = "menu"
	KindPromotions     Kind = "promociones"
	KindOrder          Kind = "pedido"
	KindAdd            Kind = "agregar"
	KindModify         Kind = "modificar"
	KindRemove         Kind = "eliminar"
	KindTotal          Kind = "total"
	KindPayment        Kind = "pago"
	KindDelivery       Kind = "entrega"
	KindConfirm        Kind = "confirmar"
	KindFarewell       Kind = "despedida"
	KindProductDetails Kind = "detalles_producto"
	KindRecommendation Kind = "recomendacion"
	KindUnavailable    Kind = "no_disponible"
	KindOffTopic       Kind = "fuera_de_contexto"
	KindNotUnderstood  Kind = "no_entendido"
)

var allKinds = []Kind{
	KindGreeting, KindMenu, KindPromotions, KindOrder, KindAdd, KindModify, KindRemove,
	KindTotal, KindPayment, KindDelivery, KindConfirm, KindFarewell, KindProductDetails,
	KindRecommendation, KindUnavailable, KindOffTopic, KindNotUnderstood,
}

// Kinds returns every known kind.
func Kinds() []Kind {
	return append([]Kind(nil), allKinds...)
}

// ParseKind maps a wire name to a Kind.
func ParseKind(s string) (Kind, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, k := range allKinds {
		if string(k) == s {
			return k, true
		}
	}
	return "", false
}

// PaymentMethod is how the customer will pay.
type PaymentMethod string

const (
	PaymentNone     PaymentMethod = ""
	PaymentTransfer PaymentMethod = "transfer"
	PaymentCash     PaymentMethod = "cash"
)

// ParsePaymentMethod accepts Spanish and English spellings.
func ParsePaymentMethod(s string) (PaymentMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "transferencia", "transfer", "transferir", "nequi", "daviplata":
		return PaymentTransfer, true
	case "efectivo", "cash", "contraentrega", "contra entrega":
		return PaymentCash, true
	}
	return PaymentNone, false
}

// Label is the customer-facing name.
func (p PaymentMethod) Label() string {
	switch p {
	case PaymentTransfer:
		return "transferencia"
	case PaymentCash:
		return "efectivo"
	}
	return ""
}

// DeliveryMode is how the order reaches the customer.
type DeliveryMode string

const (
	DeliveryNone   DeliveryMode = ""
	DeliveryPickup DeliveryMode = "pickup"
	DeliveryHome   DeliveryMode = "delivery"
)

// ParseDeliveryMode accepts Spanish and English spellings.
func ParseDeliveryMode(s string) (DeliveryMode, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "domicilio", "delivery", "envio", "a domicilio":
		return DeliveryHome, true
	case "tienda", "pickup", "recoger", "recoger en tienda":
		return DeliveryPickup, true
	}
	return DeliveryNone, false
}

// Label is the customer-facing name.
func (d DeliveryMode) Label() string {
	switch d {
	case DeliveryHome:
		return "envío a domicilio"
	case DeliveryPickup:
		return "recoger en tienda"
	}
	return ""
}

// Source records which stage produced a Resolved intent.
type Source string

const (
	SourceFastPath   Source = "fastpath"
	SourceExtraction Source = "extraction"
	SourceLLM        Source = "llm"
	SourceCache      Source = "cache"
	SourceFallback   Source = "fallback"
)

// MaxQuantity caps the quantity of one cart line.
const MaxQuantity = 999

// ClampQuantity bounds n to [1, MaxQuantity].
func ClampQuantity(n int) int {
	switch {
	case n < 1:
		return 1
	case n > MaxQuantity:
		return MaxQuantity
	}
	return n
}

// Item is a requested product and quantity. Product is a canonical catalog key once
// validated.
type Item struct {
	Product  string `json:"producto"`
	Quantity int    `json:"cantidad"`
}

// Resolved is the output of the classifier cascade and the input of the order machine.
type Resolved struct {
	Kind     Kind
	Items    []Item
	Payment  PaymentMethod
	Delivery DeliveryMode
	Remove   []string
	Topic    string
	Reply    string
	Source   Source
}

// MergeItems folds duplicate products together, summing quantities up to MaxQuantity and
// keeping first-seen order.
func MergeItems(items []Item) []Item {
	out := make([]Item, 0, len(items))
	index := map[string]int{}
	for _, it := range items {
		it.Quantity = ClampQuantity(it.Quantity)
		if i, ok := index[it.Product]; ok {
			out[i].Quantity = ClampQuantity(out[i].Quantity + it.Quantity)
			continue
		}
		index[it.Product] = len(out)
		out = append(out, it)
	}
	return out
}
