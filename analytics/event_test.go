package analytics

import (
	"encoding/json"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload(t *testing.T) {
	t.Run("variants", func(t *testing.T) {
		p, err := DecodePayload(EventPageView, []byte(`{"path":"/mugs","referrer":"https://example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, PageViewPayload{Path: "/mugs", Referrer: "https://example.com"}, p)

		p, err = DecodePayload(EventLeadSubmit, []byte(`{"formId":"contact","email":"ana@example.com"}`))
		require.NoError(t, err)
		assert.Equal(t, LeadSubmitPayload{FormID: "contact", Email: "ana@example.com"}, p)

		p, err = DecodePayload(EventPurchase, []byte(`{"revenue":"19.99","currency":"EUR","orderId":"o-1"}`))
		require.NoError(t, err)
		purchase, ok := p.(PurchasePayload)
		require.True(t, ok)
		assert.True(t, purchase.Revenue.Equal(decimal.RequireFromString("19.99")))
		assert.Equal(t, "EUR", purchase.Currency)
	})

	t.Run("empty data is the zero payload", func(t *testing.T) {
		p, err := DecodePayload(EventProductClick, nil)
		require.NoError(t, err)
		assert.Equal(t, ProductClickPayload{}, p)
	})

	t.Run("invalid payloads", func(t *testing.T) {
		cases := map[string]struct {
			eventType EventType
			raw       string
		}{
			"negative revenue":   {EventPurchase, `{"revenue":"-1","currency":"USD"}`},
			"lowercase currency": {EventPurchase, `{"revenue":"1","currency":"usd"}`},
			"missing currency":   {EventPurchase, `{"revenue":"1"}`},
			"bad email":          {EventLeadSubmit, `{"email":"not-an-email"}`},
			"malformed json":     {EventPageView, `{"path":`},
			"unknown type":       {EventType("refund"), `{}`},
		}

		for name, tc := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := DecodePayload(tc.eventType, []byte(tc.raw))
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidPayload)
			})
		}
	})

	t.Run("validation failures carry the validation category", func(t *testing.T) {
		_, err := DecodePayload(EventPurchase, []byte(`{"revenue":"1","currency":"usd"}`))
		require.Error(t, err)

		var typed *goerrors.Error
		require.ErrorAs(t, err, &typed)
		assert.Equal(t, goerrors.CategoryValidation, typed.Category)
	})
}

func TestEvent_JSON(t *testing.T) {
	in := withUTM(purchase("p1", "42.10", at(1, 2)), "newsletter", "email")
	in.ID = uuid.New()
	in.SessionID = "sess-1"

	raw, err := json.Marshal(in)
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "purchase", fields["eventType"])
	assert.Contains(t, fields, "eventData")
	assert.NotContains(t, fields, "Data")

	var out Event
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, in.ID, out.ID)
	assert.Equal(t, in.Type, out.Type)
	assert.Equal(t, "newsletter", out.UTMSource)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.True(t, out.Revenue().Equal(decimal.RequireFromString("42.10")))
}

func TestEvent_UnmarshalRejectsMismatchedData(t *testing.T) {
	raw := []byte(`{"storeId":"s1","eventType":"purchase","eventData":{"revenue":"5"},"createdAt":"2024-05-01T00:00:00Z"}`)

	var e Event
	err := json.Unmarshal(raw, &e)
	assert.ErrorIs(t, err, ErrInvalidPayload)
}

func TestEvent_Validate(t *testing.T) {
	valid := pageView("p1", at(0, 1))
	assert.NoError(t, valid.Validate())

	missingStore := valid
	missingStore.StoreID = ""
	err := missingStore.Validate()
	require.Error(t, err)
	var typed *goerrors.Error
	require.ErrorAs(t, err, &typed)
	assert.Equal(t, goerrors.CategoryValidation, typed.Category)

	mismatched := valid
	mismatched.Data = ProductClickPayload{}
	assert.ErrorIs(t, mismatched.Validate(), ErrInvalidPayload)

	noData := valid
	noData.Data = nil
	assert.ErrorIs(t, noData.Validate(), ErrInvalidPayload)

	badPurchase := purchase("p1", "-3", at(0, 1))
	assert.ErrorIs(t, badPurchase.Validate(), ErrInvalidPayload)

	assert.True(t, pageView("", at(0, 1)).Revenue().IsZero())
}
