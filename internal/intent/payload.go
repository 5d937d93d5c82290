package intent

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/invopop/jsonschema"
)

// ErrInvalidPayload is returned when a model response does not satisfy the intent contract.
var ErrInvalidPayload = errors.New("invalid intent payload")

// Payload is the JSON object the language model must return.
type Payload struct {
	Intencion string        `json:"intencion" jsonschema:"enum=saludo,enum=menu,enum=promociones,enum=pedido,enum=agregar,enum=modificar,enum=eliminar,enum=total,enum=pago,enum=entrega,enum=confirmar,enum=despedida,enum=detalles_producto,enum=recomendacion,enum=no_disponible,enum=fuera_de_contexto,enum=no_entendido"`
	Items     []PayloadItem `json:"items,omitempty"`
	Eliminar  []string      `json:"eliminar,omitempty" jsonschema:"description=productos a quitar del pedido"`
	Metodo    string        `json:"metodo,omitempty" jsonschema:"enum=transferencia,enum=efectivo,enum="`
	Modo      string        `json:"modo,omitempty" jsonschema:"enum=domicilio,enum=tienda,enum="`
	Tema      string        `json:"tema,omitempty"`
	Respuesta string        `json:"respuesta" jsonschema:"description=respuesta conversacional breve con emojis"`
}

// PayloadItem is one ordered product inside Payload.
type PayloadItem struct {
	Producto string `json:"producto" jsonschema:"description=nombre exacto del catálogo"`
	Cantidad int    `json:"cantidad" jsonschema:"minimum=1,maximum=999"`
}

// Schema reflects the Payload contract as a JSON schema.
func Schema() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	return reflector.Reflect(&Payload{})
}

// SchemaJSON is Schema rendered for embedding in a prompt.
func SchemaJSON() string {
	data, err := json.MarshalIndent(Schema(), "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

// ProductResolver maps free product names to catalog keys.
type ProductResolver interface {
	Resolve(nameOrAlias string) (string, bool)
}

// rawPayload keeps items loosely typed so one bad entry cannot reject the whole answer.
type rawPayload struct {
	Intencion string            `json:"intencion"`
	Items     []json.RawMessage `json:"items"`
	Eliminar  []json.RawMessage `json:"eliminar"`
	Metodo    string            `json:"metodo"`
	Modo      string            `json:"modo"`
	Tema      string            `json:"tema"`
	Respuesta string            `json:"respuesta"`
}

// Decode parses a model JSON payload into a Resolved intent. Items that do not resolve
// against products, or whose quantity is not a number, are dropped and logged.
func Decode(data []byte, products ProductResolver, log *slog.Logger) (Resolved, error) {
	if log == nil {
		log = slog.Default()
	}
	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return Resolved{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	kind, ok := ParseKind(raw.Intencion)
	if !ok {
		return Resolved{}, fmt.Errorf("%w: unknown intencion %q", ErrInvalidPayload, raw.Intencion)
	}
	out := Resolved{
		Kind:   kind,
		Topic:  strings.TrimSpace(raw.Tema),
		Reply:  strings.TrimSpace(raw.Respuesta),
		Source: SourceLLM,
	}
	out.Payment, _ = ParsePaymentMethod(raw.Metodo)
	out.Delivery, _ = ParseDeliveryMode(raw.Modo)
	out.Items = ValidateItems(raw.Items, products, log)

	for _, r := range raw.Eliminar {
		name := decodeProductRef(r)
		if key, ok := products.Resolve(name); ok && name != "" {
			out.Remove = append(out.Remove, key)
			continue
		}
		log.Warn("invalid remove entry from llm", slog.String("entry", string(r)))
	}
	if kind == KindRemove && len(out.Remove) == 0 {
		for _, it := range out.Items {
			out.Remove = append(out.Remove, it.Product)
		}
	}
	return out, nil
}

// ValidateItems keeps entries with a resolvable producto and coerces cantidad to an
// integer >= 1 (missing means 1).
func ValidateItems(items []json.RawMessage, products ProductResolver, log *slog.Logger) []Item {
	valid := make([]Item, 0, len(items))
	for _, r := range items {
		var entry map[string]any
		if err := json.Unmarshal(r, &entry); err != nil {
			log.Warn("invalid item from llm", slog.String("item", string(r)))
			continue
		}
		name, _ := entry["producto"].(string)
		key, ok := products.Resolve(name)
		if strings.TrimSpace(name) == "" || !ok {
			log.Warn("invalid item from llm", slog.String("item", string(r)))
			continue
		}
		qty, ok := coerceQuantity(entry["cantidad"])
		if !ok {
			log.Warn("invalid quantity from llm", slog.String("item", string(r)))
			continue
		}
		valid = append(valid, Item{Product: key, Quantity: qty})
	}
	return MergeItems(valid)
}

func coerceQuantity(v any) (int, bool) {
	var n int
	switch typed := v.(type) {
	case nil:
		return 1, true
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return 0, false
		}
		if typed > MaxQuantity {
			return MaxQuantity, true
		}
		n = int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if errors.Is(err, strconv.ErrRange) {
			return MaxQuantity, true
		}
		if err != nil {
			return 0, false
		}
		n = parsed
	default:
		return 0, false
	}
	return ClampQuantity(n), true
}

func decodeProductRef(r json.RawMessage) string {
	var s string
	if err := json.Unmarshal(r, &s); err == nil {
		return s
	}
	var obj struct {
		Producto string `json:"producto"`
	}
	if err := json.Unmarshal(r, &obj); err == nil {
		return obj.Producto
	}
	return ""
}
