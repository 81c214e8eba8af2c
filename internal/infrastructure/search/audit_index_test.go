package search

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func jsonResponse(status int, body string) *http.Response {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("X-Elastic-Product", "Elasticsearch")
	return &http.Response{StatusCode: status, Header: h, Body: io.NopCloser(strings.NewReader(body))}
}

func newClient(t *testing.T, fn roundTripFunc) *elasticsearch.Client {
	t.Helper()
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{"http://es.test:9200"},
		Transport: fn,
	})
	require.NoError(t, err)
	return es
}

func TestAuditIndex_Index(t *testing.T) {
	var gotPath string
	var gotDoc map[string]any
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		gotPath = r.URL.Path
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &gotDoc)
		return jsonResponse(http.StatusCreated, `{"result":"created"}`), nil
	})

	idx := NewAuditIndex(es, "audit-logs")
	err := idx.Index(context.Background(), entity.AuditEntry{
		ID: 7, AccountID: "acc-1", Action: entity.ActionLogin, IP: "10.0.0.1",
		CreatedAt: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	assert.Equal(t, "/audit-logs/_doc/7", gotPath)
	assert.Equal(t, "acc-1", gotDoc["account_id"])
	assert.Equal(t, entity.ActionLogin, gotDoc["action"])
}

func TestAuditIndex_IndexErrorStatus(t *testing.T) {
	es := newClient(t, func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusServiceUnavailable, `{"error":"unavailable"}`), nil
	})
	err := NewAuditIndex(es, "audit-logs").Index(context.Background(), entity.AuditEntry{ID: 1})
	assert.Error(t, err)
}

func TestAuditIndex_Search(t *testing.T) {
	var query map[string]any
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &query)
		var buf bytes.Buffer
		buf.WriteString(`{"hits":{"hits":[`)
		buf.WriteString(`{"_source":{"id":2,"account_id":"acc-1","action":"User Logout","created_at":"2026-01-02T00:00:00Z"}},`)
		buf.WriteString(`{"_source":{"id":1,"account_id":"acc-1","action":"User Login","created_at":"2026-01-01T00:00:00Z"}}`)
		buf.WriteString(`]}}`)
		return jsonResponse(http.StatusOK, buf.String()), nil
	})

	got, err := NewAuditIndex(es, "audit-logs").Search(context.Background(), "acc-1", "user", 0)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(2), got[0].ID)
	assert.Equal(t, "User Login", got[1].Action)
	assert.EqualValues(t, 20, query["size"])
}

func TestAuditIndex_SearchFiltersAccountAsKeyword(t *testing.T) {
	var query struct {
		Query struct {
			Bool struct {
				Filter []map[string]map[string]string `json:"filter"`
			} `json:"bool"`
		} `json:"query"`
	}
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &query)
		return jsonResponse(http.StatusOK, `{"hits":{"hits":[]}}`), nil
	})

	_, err := NewAuditIndex(es, "audit-logs").Search(context.Background(), "0b6f7c1e-4a51-4a53-9d0c-2f3c1a7e9b10", "login", 5)
	require.NoError(t, err)
	require.Len(t, query.Query.Bool.Filter, 1)
	assert.Equal(t, "0b6f7c1e-4a51-4a53-9d0c-2f3c1a7e9b10", query.Query.Bool.Filter[0]["term"]["account_id"])
}

func TestAuditIndex_EnsureIndexCreatesMapping(t *testing.T) {
	var methods []string
	var mapping struct {
		Mappings struct {
			Properties map[string]struct {
				Type string `json:"type"`
			} `json:"properties"`
		} `json:"mappings"`
	}
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		methods = append(methods, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodHead {
			return jsonResponse(http.StatusNotFound, ``), nil
		}
		b, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(b, &mapping)
		return jsonResponse(http.StatusOK, `{"acknowledged":true}`), nil
	})

	require.NoError(t, NewAuditIndex(es, "audit-logs").EnsureIndex(context.Background()))
	assert.Equal(t, []string{"HEAD /audit-logs", "PUT /audit-logs"}, methods)
	props := mapping.Mappings.Properties
	assert.Equal(t, "keyword", props["account_id"].Type)
	assert.Equal(t, "keyword", props["ip"].Type)
	assert.Equal(t, "date", props["created_at"].Type)
	assert.Equal(t, "text", props["action"].Type)
}

func TestAuditIndex_EnsureIndexKeepsExisting(t *testing.T) {
	calls := 0
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		calls++
		return jsonResponse(http.StatusOK, ``), nil
	})
	require.NoError(t, NewAuditIndex(es, "audit-logs").EnsureIndex(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestAuditIndex_EnsureIndexCreateRace(t *testing.T) {
	es := newClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method == http.MethodHead {
			return jsonResponse(http.StatusNotFound, ``), nil
		}
		return jsonResponse(http.StatusBadRequest, `{"error":{"type":"resource_already_exists_exception"}}`), nil
	})
	assert.NoError(t, NewAuditIndex(es, "audit-logs").EnsureIndex(context.Background()))
}
