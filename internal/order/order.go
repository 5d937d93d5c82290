// Package order applies resolved intents to a session: it owns the cart, the phase
// transitions and the confirm lifecycle.
package order

import (
	"fmt"
	"strings"

	"github.com/congelados/vendedor/internal/catalog"
	"github.com/congelados/vendedor/internal/intent"
	"github.com/congelados/vendedor/internal/reply"
	"github.com/congelados/vendedor/internal/session"
)

// State labels returned with every reply.
const (
	StateGreeting          = "saludo"
	StateMenu              = "menu"
	StatePromotions        = "promociones"
	StateOrder             = "pedido"
	StateTotal             = "total"
	StatePayment           = "pago"
	StateDeliveryConfirmed = "entrega_confirmada"
	StateDeliveryPending   = "entrega_pendiente"
	StateConfirmed         = "confirmado"
	StateFarewell          = "despedida"
	StateNotUnderstood     = "no_entendido"
	StateError             = "error"
)

const (
	offerMenuReply     = "Aún no tienes productos en tu pedido. ¿Te muestro el menú? :blush:"
	notUnderstoodReply = "No te entendí bien 😅 ¿Podrías decirlo de otra forma?"
	askPaymentReply    = "💳 Aceptamos transferencia o efectivo. ¿Cuál prefieres?"
	askDeliveryReply   = "¿Prefieres *recoger en tienda* o *envío a domicilio*? 🏪🚚"
	askProductReply    = "¿Qué producto te gustaría pedir? Puedo mostrarte el menú si quieres :yum:"
	closingReply       = "En breve un asesor finalizará el proceso y coordinará la entrega. ¡Gracias por elegirnos! 🙌\n\n" +
		"PS: Este es un *demo* de Tu Vendedor Inteligente (web/WhatsApp/IG). ¿Te gustaría tener uno así en tu empresa? :wink:"
)

// Templates renders the fixed replies the machine falls back to.
type Templates interface {
	Greeting() string
	Menu() string
	Promotions() string
	Farewell() string
	Unavailable(what string) string
	HomeDelivery() string
	Pickup() string
}

// Outcome is the result of applying one intent.
type Outcome struct {
	State string
	Reply string
	Phase session.Phase
	// Ended means the conversation finished and the session must be removed.
	Ended        bool
	Confirmation *Confirmation
}

// Line is one priced cart entry.
type Line struct {
	Product  string `json:"producto"`
	Name     string `json:"nombre"`
	Quantity int    `json:"cantidad"`
	Unit     int64  `json:"precio_unitario"`
	Subtotal int64  `json:"subtotal"`
}

// Confirmation describes a confirmed order.
type Confirmation struct {
	UserID   string               `json:"usuario_id"`
	Lines    []Line               `json:"items"`
	Total    int64                `json:"total"`
	Payment  intent.PaymentMethod `json:"metodo,omitempty"`
	Delivery intent.DeliveryMode  `json:"modo,omitempty"`
}

type handler func(m *Machine, s *session.Session, res intent.Resolved) Outcome

// Machine is stateless apart from its collaborators and safe for concurrent use; callers
// serialize access to each session.
type Machine struct {
	catalog   *catalog.Catalog
	picker    reply.Picker
	templates Templates
	handlers  map[intent.Kind]handler
}

// New builds a machine.
func New(cat *catalog.Catalog, picker reply.Picker, templates Templates) *Machine {
	if picker == nil {
		picker = reply.NewRandomPicker(0)
	}
	return &Machine{
		catalog:   cat,
		picker:    picker,
		templates: templates,
		handlers:  dispatchTable(),
	}
}

// Handles reports whether kind has a dedicated handler.
func (m *Machine) Handles(kind intent.Kind) bool {
	_, ok := m.handlers[kind]
	return ok
}

// Apply mutates s according to res and returns the reply to send.
func (m *Machine) Apply(s *session.Session, res intent.Resolved) Outcome {
	h, ok := m.handlers[res.Kind]
	if !ok {
		h = (*Machine).notUnderstood
	}
	out := h(m, s, res)
	out.Phase = s.Phase
	return out
}

func dispatchTable() map[intent.Kind]handler {
	return map[intent.Kind]handler{
		intent.KindGreeting:       (*Machine).greeting,
		intent.KindMenu:           (*Machine).menu,
		intent.KindPromotions:     (*Machine).promotions,
		intent.KindOrder:          (*Machine).add,
		intent.KindAdd:            (*Machine).add,
		intent.KindModify:         (*Machine).modify,
		intent.KindRemove:         (*Machine).remove,
		intent.KindTotal:          (*Machine).total,
		intent.KindPayment:        (*Machine).payment,
		intent.KindDelivery:       (*Machine).delivery,
		intent.KindConfirm:        (*Machine).confirm,
		intent.KindFarewell:       (*Machine).farewell,
		intent.KindProductDetails: (*Machine).passThrough,
		intent.KindRecommendation: (*Machine).passThrough,
		intent.KindUnavailable:    (*Machine).unavailable,
		intent.KindOffTopic:       (*Machine).passThrough,
		intent.KindNotUnderstood:  (*Machine).notUnderstood,
	}
}

func (m *Machine) greeting(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: StateGreeting, Reply: orDefault(res.Reply, m.templates.Greeting)}
}

func (m *Machine) menu(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: StateMenu, Reply: orDefault(res.Reply, m.templates.Menu)}
}

func (m *Machine) promotions(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: StatePromotions, Reply: orDefault(res.Reply, m.templates.Promotions)}
}

func (m *Machine) farewell(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: StateFarewell, Reply: orDefault(res.Reply, m.templates.Farewell)}
}

func (m *Machine) add(s *session.Session, res intent.Resolved) Outcome {
	if len(res.Items) == 0 {
		return Outcome{State: StateOrder, Reply: orText(res.Reply, askProductReply)}
	}
	s.AddItems(res.Items)
	switch {
	case res.Kind == intent.KindOrder && (s.Phase == session.PhaseStart || s.Phase == session.PhaseBrowsing):
		s.Phase = session.PhaseAwaitingPayment
	case s.Phase == session.PhaseStart:
		s.Phase = session.PhaseBrowsing
	}
	if res.Source == intent.SourceLLM || res.Source == intent.SourceCache {
		if r := strings.TrimSpace(res.Reply); r != "" {
			return Outcome{State: StateOrder, Reply: r}
		}
	}
	breakdown, total := m.Breakdown(s.Cart)
	money := m.catalog.Money(total)
	pool := []string{
		fmt.Sprintf(":shopping_cart: ¡Perfecto! He actualizado tu pedido:\n%s\n\nTotal: %s\n¿Quieres agregar algo más o pasamos al pago? :credit_card:", breakdown, money),
		fmt.Sprintf(":white_check_mark: ¡Agregado! Tu pedido:\n%s\n\n:moneybag: Total: %s\n¿Deseas algo adicional?", breakdown, money),
		fmt.Sprintf(":dart: ¡Excelente elección! Ahora tienes:\n%s\n\n:dollar: Total: %s\n¿Necesitas algo más?", breakdown, money),
	}
	return Outcome{State: StateOrder, Reply: m.picker.Pick(pool)}
}

func (m *Machine) modify(s *session.Session, res intent.Resolved) Outcome {
	if s.SetQuantities(res.Items) == 0 {
		if s.CartEmpty() {
			return Outcome{State: StateOrder, Reply: offerMenuReply}
		}
		return Outcome{State: StateOrder, Reply: "No encontré esos productos en tu pedido 🤔. ¿Quieres agregarlos?"}
	}
	breakdown, total := m.Breakdown(s.Cart)
	return Outcome{
		State: StateOrder,
		Reply: fmt.Sprintf("✏️ Listo, actualicé tu pedido:\n%s\n\nTotal: %s\n¿Algo más?", breakdown, m.catalog.Money(total)),
	}
}

func (m *Machine) remove(s *session.Session, res intent.Resolved) Outcome {
	if s.RemoveProducts(res.Remove) == 0 {
		if s.CartEmpty() {
			return Outcome{State: StateOrder, Reply: offerMenuReply}
		}
		return Outcome{State: StateOrder, Reply: "Ese producto no estaba en tu pedido 🤔. ¿Quieres cambiar algo más?"}
	}
	if s.CartEmpty() {
		return Outcome{State: StateOrder, Reply: "🗑️ Listo, tu pedido quedó vacío. ¿Te muestro el menú? :blush:"}
	}
	breakdown, total := m.Breakdown(s.Cart)
	return Outcome{
		State: StateOrder,
		Reply: fmt.Sprintf("🗑️ Listo, lo quité. Tu pedido:\n%s\n\nTotal: %s\n¿Deseas algo más?", breakdown, m.catalog.Money(total)),
	}
}

func (m *Machine) total(s *session.Session, _ intent.Resolved) Outcome {
	if s.CartEmpty() {
		return Outcome{State: StateTotal, Reply: offerMenuReply}
	}
	breakdown, total := m.Breakdown(s.Cart)
	return Outcome{
		State: StateTotal,
		Reply: fmt.Sprintf("🧮 Tu pedido va así:\n%s\n\nTotal: %s\n¿Confirmamos o agregas algo más?", breakdown, m.catalog.Money(total)),
	}
}

func (m *Machine) payment(s *session.Session, res intent.Resolved) Outcome {
	if res.Payment == intent.PaymentNone {
		return Outcome{State: StatePayment, Reply: orText(res.Reply, askPaymentReply)}
	}
	s.Payment = res.Payment
	if s.CartEmpty() {
		return Outcome{
			State: StatePayment,
			Reply: fmt.Sprintf("💳 Anoté que pagarás con *%s*. %s", res.Payment.Label(), offerMenuReply),
		}
	}
	s.Phase = session.PhaseAwaitingConfirmation
	breakdown, total := m.Breakdown(s.Cart)
	return Outcome{
		State: StatePayment,
		Reply: fmt.Sprintf("💳 Perfecto, registré *%s*.\n\n%s\n\nTotal: %s\n¿Confirmamos el pedido? :white_check_mark:",
			res.Payment.Label(), breakdown, m.catalog.Money(total)),
	}
}

func (m *Machine) delivery(s *session.Session, res intent.Resolved) Outcome {
	switch res.Delivery {
	case intent.DeliveryHome:
		s.Delivery = res.Delivery
		return Outcome{State: StateDeliveryConfirmed, Reply: m.templates.HomeDelivery()}
	case intent.DeliveryPickup:
		s.Delivery = res.Delivery
		return Outcome{State: StateDeliveryConfirmed, Reply: m.templates.Pickup()}
	}
	return Outcome{State: StateDeliveryPending, Reply: askDeliveryReply}
}

func (m *Machine) confirm(s *session.Session, _ intent.Resolved) Outcome {
	if s.CartEmpty() {
		return Outcome{State: StateMenu, Reply: offerMenuReply}
	}
	lines := m.Lines(s.Cart)
	total := Total(lines)
	s.Phase = session.PhaseConfirmed

	var b strings.Builder
	fmt.Fprintf(&b, "🎉 ¡Pedido confirmado! Total: %s\n", m.catalog.Money(total))
	if s.Payment != intent.PaymentNone {
		fmt.Fprintf(&b, "Pago: %s\n", s.Payment.Label())
	}
	if s.Delivery != intent.DeliveryNone {
		fmt.Fprintf(&b, "Entrega: %s\n", s.Delivery.Label())
	}
	b.WriteString(closingReply)

	return Outcome{
		State: StateConfirmed,
		Reply: b.String(),
		Ended: true,
		Confirmation: &Confirmation{
			UserID:   s.UserID,
			Lines:    lines,
			Total:    total,
			Payment:  s.Payment,
			Delivery: s.Delivery,
		},
	}
}

func (m *Machine) unavailable(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{
		State: string(intent.KindUnavailable),
		Reply: orDefault(res.Reply, func() string { return m.templates.Unavailable(res.Topic) }),
	}
}

func (m *Machine) passThrough(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: string(res.Kind), Reply: orText(res.Reply, notUnderstoodReply)}
}

func (m *Machine) notUnderstood(_ *session.Session, res intent.Resolved) Outcome {
	return Outcome{State: StateNotUnderstood, Reply: orText(res.Reply, notUnderstoodReply)}
}

// Lines prices cart in insertion order.
func (m *Machine) Lines(cart []intent.Item) []Line {
	lines := make([]Line, 0, len(cart))
	for _, it := range cart {
		p, ok := m.catalog.Get(it.Product)
		if !ok {
			continue
		}
		qty := intent.ClampQuantity(it.Quantity)
		lines = append(lines, Line{
			Product:  it.Product,
			Name:     p.Name,
			Quantity: qty,
			Unit:     p.Price,
			Subtotal: int64(qty) * p.Price,
		})
	}
	return lines
}

// Total sums line subtotals.
func Total(lines []Line) int64 {
	var total int64
	for _, l := range lines {
		total += l.Subtotal
	}
	return total
}

// Breakdown renders "- 2 x Empanadas = $3000" per item and returns the total.
func (m *Machine) Breakdown(cart []intent.Item) (string, int64) {
	lines := m.Lines(cart)
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = fmt.Sprintf("- %d x %s = %s", l.Quantity, l.Name, m.catalog.Money(l.Subtotal))
	}
	return strings.Join(rows, "\n"), Total(lines)
}

// CartSummary renders the cart for the language model prompt; empty for an empty cart.
func (m *Machine) CartSummary(cart []intent.Item) string {
	lines := m.Lines(cart)
	rows := make([]string, len(lines))
	for i, l := range lines {
		rows[i] = fmt.Sprintf("- %d x %s", l.Quantity, l.Name)
	}
	return strings.Join(rows, "\n")
}

func orDefault(s string, fallback func() string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return fallback()
}

func orText(s, fallback string) string {
	if t := strings.TrimSpace(s); t != "" {
		return t
	}
	return fallback
}
