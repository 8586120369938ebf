package analytics

import (
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// EventType is the kind of a storefront event.
type EventType string

const (
	EventPageView     EventType = "page_view"
	EventProductClick EventType = "product_click"
	EventLeadSubmit   EventType = "lead_submit"
	EventPurchase     EventType = "purchase"
)

// EventTypes lists every known event type.
var EventTypes = []EventType{EventPageView, EventProductClick, EventLeadSubmit, EventPurchase}

// Valid reports whether t is a known event type.
func (t EventType) Valid() bool {
	switch t {
	case EventPageView, EventProductClick, EventLeadSubmit, EventPurchase:
		return true
	}
	return false
}

// Payload is the event data variant selected by the event type.
type Payload interface {
	EventType() EventType
	Validate() error
}

type PageViewPayload struct {
	Path     string `json:"path,omitempty"`
	Referrer string `json:"referrer,omitempty"`
}

func (PageViewPayload) EventType() EventType { return EventPageView }

func (p PageViewPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Path, validation.Length(0, 2048)),
		validation.Field(&p.Referrer, validation.Length(0, 2048)),
	)
}

type ProductClickPayload struct {
	// Target is the outbound link or action the visitor clicked.
	Target string `json:"target,omitempty"`
}

func (ProductClickPayload) EventType() EventType { return EventProductClick }

func (p ProductClickPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Target, validation.Length(0, 2048)),
	)
}

type LeadSubmitPayload struct {
	FormID string `json:"formId,omitempty"`
	Email  string `json:"email,omitempty"`
}

func (LeadSubmitPayload) EventType() EventType { return EventLeadSubmit }

func (p LeadSubmitPayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.FormID, validation.Length(0, 128)),
		validation.Field(&p.Email, is.EmailFormat),
	)
}

var currencyCode = regexp.MustCompile(`^[A-Z]{3}$`)

type PurchasePayload struct {
	Revenue  decimal.Decimal `json:"revenue"`
	Currency string          `json:"currency"`
	OrderID  string          `json:"orderId,omitempty"`
}

func (PurchasePayload) EventType() EventType { return EventPurchase }

func (p PurchasePayload) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Revenue, validation.By(nonNegativeDecimal)),
		validation.Field(&p.Currency, validation.Required, validation.Match(currencyCode)),
	)
}

func nonNegativeDecimal(value any) error {
	d, ok := value.(decimal.Decimal)
	if !ok {
		return fmt.Errorf("must be a decimal")
	}
	if d.IsNegative() {
		return fmt.Errorf("must not be negative")
	}
	return nil
}

// DecodePayload parses raw event data for eventType and validates it. Empty
// data decodes to the zero payload of the type.
func DecodePayload(eventType EventType, raw []byte) (Payload, error) {
	var payload Payload
	switch eventType {
	case EventPageView:
		payload = &PageViewPayload{}
	case EventProductClick:
		payload = &ProductClickPayload{}
	case EventLeadSubmit:
		payload = &LeadSubmitPayload{}
	case EventPurchase:
		payload = &PurchasePayload{}
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, eventType)
	}

	if len(raw) > 0 && string(raw) != "null" {
		if err := json.Unmarshal(raw, payload); err != nil {
			return nil, fmt.Errorf("%w: decode %s payload: %w", ErrInvalidPayload, eventType, err)
		}
	}

	value := derefPayload(payload)
	if err := value.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, goerrors.FromOzzoValidation(err, fmt.Sprintf("invalid %s payload", eventType)))
	}
	return value, nil
}

func derefPayload(p Payload) Payload {
	switch v := p.(type) {
	case *PageViewPayload:
		return *v
	case *ProductClickPayload:
		return *v
	case *LeadSubmitPayload:
		return *v
	case *PurchasePayload:
		return *v
	}
	return p
}

// Event is one immutable entry of the storefront event log. Optional
// references are empty strings when absent.
type Event struct {
	ID          uuid.UUID `json:"id"`
	StoreID     string    `json:"storeId"`
	ProductID   string    `json:"productId,omitempty"`
	SessionID   string    `json:"sessionId,omitempty"`
	Type        EventType `json:"eventType"`
	Data        Payload   `json:"-"`
	UTMSource   string    `json:"utmSource,omitempty"`
	UTMMedium   string    `json:"utmMedium,omitempty"`
	UTMCampaign string    `json:"utmCampaign,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type eventAlias Event

type eventJSON struct {
	eventAlias
	Data json.RawMessage `json:"eventData,omitempty"`
}

// MarshalJSON writes Data under eventData.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{eventAlias: eventAlias(e)}
	if e.Data != nil {
		raw, err := json.Marshal(e.Data)
		if err != nil {
			return nil, err
		}
		out.Data = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes eventData into the variant matching eventType.
func (e *Event) UnmarshalJSON(data []byte) error {
	var in eventJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*e = Event(in.eventAlias)

	if !e.Type.Valid() {
		return fmt.Errorf("%w: unknown event type %q", ErrInvalidPayload, e.Type)
	}
	payload, err := DecodePayload(e.Type, in.Data)
	if err != nil {
		return err
	}
	e.Data = payload
	return nil
}

// Validate checks the event envelope and that Data matches Type.
func (e Event) Validate() error {
	err := validation.ValidateStruct(&e,
		validation.Field(&e.StoreID, validation.Required, validation.Length(1, 64)),
		validation.Field(&e.Type, validation.Required, validation.In(EventPageView, EventProductClick, EventLeadSubmit, EventPurchase)),
		validation.Field(&e.CreatedAt, validation.Required),
		validation.Field(&e.UTMSource, validation.Length(0, 255)),
		validation.Field(&e.UTMMedium, validation.Length(0, 255)),
		validation.Field(&e.UTMCampaign, validation.Length(0, 255)),
	)
	if err != nil {
		return goerrors.FromOzzoValidation(err, "invalid event")
	}

	if e.Data == nil {
		return fmt.Errorf("%w: event data is required", ErrInvalidPayload)
	}
	if e.Data.EventType() != e.Type {
		return fmt.Errorf("%w: %s payload does not match event type %s", ErrInvalidPayload, e.Data.EventType(), e.Type)
	}
	if err := e.Data.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, goerrors.FromOzzoValidation(err, fmt.Sprintf("invalid %s payload", e.Type)))
	}
	return nil
}

// Revenue returns the purchase revenue of e, or zero for other event types.
func (e Event) Revenue() decimal.Decimal {
	if p, ok := e.Data.(PurchasePayload); ok {
		return p.Revenue
	}
	return decimal.Zero
}
