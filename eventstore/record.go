package eventstore

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-storefront-cache/analytics"
)

// eventRecord is the row shape of an event. Data holds the JSON payload
// selected by EventType; Seq keeps insertion order among equal timestamps.
type eventRecord struct {
	bun.BaseModel `bun:"table:storefront_events,alias:se"`

	Seq         int64     `bun:"seq,pk,autoincrement"`
	ID          uuid.UUID `bun:"id,notnull,unique,type:uuid"`
	StoreID     string    `bun:"store_id,notnull"`
	ProductID   string    `bun:"product_id,nullzero"`
	SessionID   string    `bun:"session_id,nullzero"`
	EventType   string    `bun:"event_type,notnull"`
	Data        string    `bun:"event_data,notnull"`
	UTMSource   string    `bun:"utm_source,nullzero"`
	UTMMedium   string    `bun:"utm_medium,nullzero"`
	UTMCampaign string    `bun:"utm_campaign,nullzero"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

func newRecord(e analytics.Event) (*eventRecord, error) {
	data, err := json.Marshal(e.Data)
	if err != nil {
		return nil, err
	}
	return &eventRecord{
		ID:          e.ID,
		StoreID:     e.StoreID,
		ProductID:   e.ProductID,
		SessionID:   e.SessionID,
		EventType:   string(e.Type),
		Data:        string(data),
		UTMSource:   e.UTMSource,
		UTMMedium:   e.UTMMedium,
		UTMCampaign: e.UTMCampaign,
		CreatedAt:   e.CreatedAt,
	}, nil
}

func (r eventRecord) event() (analytics.Event, error) {
	eventType := analytics.EventType(r.EventType)
	payload, err := analytics.DecodePayload(eventType, []byte(r.Data))
	if err != nil {
		return analytics.Event{}, err
	}
	return analytics.Event{
		ID:          r.ID,
		StoreID:     r.StoreID,
		ProductID:   r.ProductID,
		SessionID:   r.SessionID,
		Type:        eventType,
		Data:        payload,
		UTMSource:   r.UTMSource,
		UTMMedium:   r.UTMMedium,
		UTMCampaign: r.UTMCampaign,
		CreatedAt:   r.CreatedAt.UTC(),
	}, nil
}
