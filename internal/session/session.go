// Package session keeps per-user conversation state in memory.
package session

import (
	"fmt"
	"time"

	"github.com/congelados/vendedor/internal/intent"
)

// Phase is the order-flow stage a session is in.
type Phase string

const (
	PhaseStart                Phase = "start"
	PhaseBrowsing             Phase = "browsing"
	PhaseAwaitingPayment      Phase = "awaiting_payment"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseConfirmed            Phase = "confirmed"
)

// Turn is one customer message and the assistant reply to it.
type Turn struct {
	Customer  string
	Assistant string
	At        time.Time
}

// Session is the mutable state of one conversation. Only the holder of its Lease may
// touch it.
type Session struct {
	UserID       string
	Cart         []intent.Item
	Phase        Phase
	Payment      intent.PaymentMethod
	Delivery     intent.DeliveryMode
	History      []Turn
	CreatedAt    time.Time
	LastActivity time.Time

	historyLimit int
}

func newSession(userID string, now time.Time, historyLimit int) *Session {
	return &Session{
		UserID:       userID,
		Phase:        PhaseStart,
		CreatedAt:    now,
		LastActivity: now,
		historyLimit: historyLimit,
	}
}

// AddItems merges items into the cart, summing quantities per product up to
// intent.MaxQuantity and keeping the first-added order.
func (s *Session) AddItems(items []intent.Item) {
	for _, it := range items {
		if it.Quantity < 1 {
			continue
		}
		it.Quantity = intent.ClampQuantity(it.Quantity)
		if i := s.indexOf(it.Product); i >= 0 {
			s.Cart[i].Quantity = intent.ClampQuantity(s.Cart[i].Quantity + it.Quantity)
			continue
		}
		s.Cart = append(s.Cart, it)
	}
}

// SetQuantities overwrites quantities of products already in the cart; others are ignored.
// It returns how many entries changed.
func (s *Session) SetQuantities(items []intent.Item) int {
	changed := 0
	for _, it := range items {
		i := s.indexOf(it.Product)
		if i < 0 || it.Quantity < 1 {
			continue
		}
		s.Cart[i].Quantity = intent.ClampQuantity(it.Quantity)
		changed++
	}
	return changed
}

// RemoveProducts drops the given products from the cart and returns how many were removed.
func (s *Session) RemoveProducts(keys []string) int {
	drop := make(map[string]bool, len(keys))
	for _, k := range keys {
		drop[k] = true
	}
	kept := s.Cart[:0]
	for _, it := range s.Cart {
		if !drop[it.Product] {
			kept = append(kept, it)
		}
	}
	removed := len(s.Cart) - len(kept)
	s.Cart = kept
	return removed
}

// CartEmpty reports whether nothing has been ordered yet.
func (s *Session) CartEmpty() bool {
	return len(s.Cart) == 0
}

// AddTurn appends a turn and keeps only the most recent ones.
func (s *Session) AddTurn(customer, assistant string, at time.Time) {
	s.History = append(s.History, Turn{Customer: customer, Assistant: assistant, At: at})
	if s.historyLimit > 0 && len(s.History) > s.historyLimit {
		s.History = append([]Turn(nil), s.History[len(s.History)-s.historyLimit:]...)
	}
}

// HistoryLines renders the history as prompt lines.
func (s *Session) HistoryLines() []string {
	lines := make([]string, 0, 2*len(s.History))
	for _, t := range s.History {
		lines = append(lines, fmt.Sprintf("Cliente: %s", t.Customer), fmt.Sprintf("Bot: %s", t.Assistant))
	}
	return lines
}

func (s *Session) indexOf(product string) int {
	for i, it := range s.Cart {
		if it.Product == product {
			return i
		}
	}
	return -1
}
