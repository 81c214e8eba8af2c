package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"github.com/oksasatya/swastha-auth/internal/domain/entity"
)

const requestTimeout = 3 * time.Second

// auditMapping keeps account_id and ip exact so term filters match whole ids.
const auditMapping = `{
  "mappings": {
    "properties": {
      "id":         {"type": "long"},
      "account_id": {"type": "keyword"},
      "action":     {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "detail":     {"type": "text"},
      "ip":         {"type": "keyword"},
      "created_at": {"type": "date"}
    }
  }
}`

type auditDoc struct {
	ID        int64     `json:"id"`
	AccountID string    `json:"account_id"`
	Action    string    `json:"action"`
	Detail    string    `json:"detail,omitempty"`
	IP        string    `json:"ip,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// AuditIndex mirrors the audit trail into Elasticsearch for search. The
// Postgres table stays the source of truth.
type AuditIndex struct {
	es    *elasticsearch.Client
	index string
}

func NewAuditIndex(es *elasticsearch.Client, index string) *AuditIndex {
	return &AuditIndex{es: es, index: index}
}

// EnsureIndex creates the index with an explicit mapping when it is missing.
func (i *AuditIndex) EnsureIndex(ctx context.Context) error {
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	exists, err := esapi.IndicesExistsRequest{Index: []string{i.index}}.Do(c, i.es)
	if err != nil {
		return err
	}
	_ = exists.Body.Close()
	switch exists.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("es index exists: %s", exists.Status())
	}

	res, err := esapi.IndicesCreateRequest{
		Index: i.index,
		Body:  strings.NewReader(auditMapping),
	}.Do(c, i.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		// another replica created it first
		if strings.Contains(string(body), "resource_already_exists_exception") {
			return nil
		}
		return fmt.Errorf("es create index: %s", res.Status())
	}
	return nil
}

func (i *AuditIndex) Index(ctx context.Context, e entity.AuditEntry) error {
	b, err := json.Marshal(auditDoc(e))
	if err != nil {
		return err
	}
	req := esapi.IndexRequest{
		Index:      i.index,
		DocumentID: strconv.FormatInt(e.ID, 10),
		Body:       bytes.NewReader(b),
		Refresh:    "false",
	}
	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := req.Do(c, i.es)
	if err != nil {
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return fmt.Errorf("es index: %s", res.Status())
	}
	return nil
}

// Search runs a multi_match over action, detail and ip, newest first.
// An empty accountID searches every account. account_id is a keyword field
// (see EnsureIndex), so the filter matches whole ids only.
func (i *AuditIndex) Search(ctx context.Context, accountID, q string, size int) ([]entity.AuditEntry, error) {
	if size <= 0 || size > 100 {
		size = 20
	}
	must := []any{
		map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"action^2", "detail", "ip"},
			},
		},
	}
	boolQuery := map[string]any{"must": must}
	if accountID != "" {
		boolQuery["filter"] = []any{map[string]any{"term": map[string]any{"account_id": accountID}}}
	}
	query := map[string]any{
		"query": map[string]any{"bool": boolQuery},
		"sort":  []any{map[string]any{"created_at": "desc"}},
		"size":  size,
	}
	b, err := json.Marshal(query)
	if err != nil {
		return nil, err
	}

	c, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()
	res, err := i.es.Search(
		i.es.Search.WithContext(c),
		i.es.Search.WithIndex(i.index),
		i.es.Search.WithBody(bytes.NewReader(b)),
	)
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() {
		return nil, fmt.Errorf("es search: %s", res.Status())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source auditDoc `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	out := make([]entity.AuditEntry, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, entity.AuditEntry(h.Source))
	}
	return out, nil
}
