package airtable

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"storefront/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server) *Client {
	return NewClient(config.RecordsConfig{BaseURL: srv.URL, APIKey: "key123", BaseID: "appBase"}, srv.Client())
}

func TestListFollowsOffsets(t *testing.T) {
	var seenOffsets []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/appBase/Products", r.URL.Path)
		assert.Equal(t, "Bearer key123", r.Header.Get("Authorization"))
		assert.Equal(t, "{Active}=1", r.URL.Query().Get("filterByFormula"))

		offset := r.URL.Query().Get("offset")
		seenOffsets = append(seenOffsets, offset)
		w.Header().Set("Content-Type", "application/json")
		switch offset {
		case "":
			io.WriteString(w, `{"records":[{"id":"rec1","fields":{"Name":"A"}}],"offset":"page2"}`)
		case "page2":
			io.WriteString(w, `{"records":[{"id":"rec2","fields":{"Name":"B"}}]}`)
		}
	}))
	defer srv.Close()

	q := url.Values{}
	q.Set("filterByFormula", "{Active}=1")
	records, err := newTestClient(srv).List(context.Background(), "Products", q)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "rec1", records[0].ID)
	assert.Equal(t, "B", records[1].String("Name"))
	assert.Equal(t, []string{"", "page2"}, seenOffsets)
}

func TestListFailsWhenAnyPageFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "" {
			io.WriteString(w, `{"records":[{"id":"rec1","fields":{}}],"offset":"next"}`)
			return
		}
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := newTestClient(srv).List(context.Background(), "Products", nil)
	require.Error(t, err)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestCreateAndUpdate(t *testing.T) {
	var patched map[string]map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost:
			assert.Equal(t, "/appBase/Orders", r.URL.Path)
			var body map[string]map[string]any
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			assert.Equal(t, "Pending Payment", body["fields"]["Status"])
			io.WriteString(w, `{"id":"recOrder1","fields":{}}`)
		case http.MethodPatch:
			assert.Equal(t, "/appBase/Orders/recOrder1", r.URL.Path)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			io.WriteString(w, `{"id":"recOrder1","fields":{}}`)
		}
	}))
	defer srv.Close()

	c := newTestClient(srv)
	id, err := c.Create(context.Background(), "Orders", map[string]any{"Status": "Pending Payment"})
	require.NoError(t, err)
	assert.Equal(t, "recOrder1", id)

	require.NoError(t, c.Update(context.Background(), "Orders", id, map[string]any{"Status": "Paid"}))
	assert.Equal(t, "Paid", patched["fields"]["Status"])
}

func TestRecordAccessors(t *testing.T) {
	var rec Record
	require.NoError(t, json.Unmarshal([]byte(`{
		"id": "rec1",
		"fields": {
			"SKU": 1042,
			"Price": 12.5,
			"Pinned": true,
			"Colors": ["red", "blue"],
			"Image": ["https://cdn.example.com/a.jpg", {"url": "https://cdn.example.com/b.jpg", "filename": "b.jpg"}]
		}
	}`), &rec))

	assert.Equal(t, "1042", rec.String("SKU"))
	assert.Equal(t, 12.5, rec.Float("Price"))
	assert.True(t, rec.Bool("Pinned"))
	assert.False(t, rec.Bool("Missing"))
	assert.Equal(t, []string{"red", "blue"}, rec.Strings("Colors"))
	assert.Equal(t, []string{}, rec.Strings("Sizes"))

	atts := rec.Attachments("Images", "Image")
	require.Len(t, atts, 2)
	assert.Equal(t, "", atts[0].Filename)
	assert.Equal(t, "b.jpg", atts[1].Filename)
}
