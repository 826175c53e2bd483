// Package elasticsearch provides the full-text alert search index used by
// the analyst API. Indexing is best effort; the durable copy of every
// alert lives in the primary store.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/banking/aml-engine/internal/config"
	"github.com/banking/aml-engine/internal/domain"
	elastic "github.com/elastic/go-elasticsearch/v8"
)

type AlertIndex struct {
	client *elastic.Client
	index  string
}

// NewAlertIndex creates the alert search index client.
func NewAlertIndex(cfg config.ElasticsearchConfig) (*AlertIndex, error) {
	client, err := elastic.NewClient(elastic.Config{
		Addresses: cfg.Addresses,
		Username:  cfg.Username,
		Password:  cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
	}

	// Verify connection
	_, err = client.Info()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to elasticsearch: %w", err)
	}

	return &AlertIndex{
		client: client,
		index:  cfg.Index,
	}, nil
}

// IndexAlert indexes an alert document for search, keyed by alert id so
// re-indexing is idempotent.
func (r *AlertIndex) IndexAlert(ctx context.Context, alert *domain.Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	res, err := r.client.Index(
		r.index,
		bytes.NewReader(data),
		r.client.Index.WithContext(ctx),
		r.client.Index.WithDocumentID(alert.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to index alert: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("elasticsearch error: %s", res.String())
	}

	return nil
}

// SearchAlerts runs a query-string search over the alert index, newest
// alerts first.
func (r *AlertIndex) SearchAlerts(ctx context.Context, query string, from, size int) (*domain.AlertPage, error) {
	esQuery := map[string]interface{}{
		"from": from,
		"size": size,
		"query": map[string]interface{}{
			"query_string": map[string]interface{}{
				"query": query,
			},
		},
		"sort": []map[string]interface{}{
			{"timestamp": "desc"},
		},
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(esQuery); err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}

	res, err := r.client.Search(
		r.client.Search.WithContext(ctx),
		r.client.Search.WithIndex(r.index),
		r.client.Search.WithBody(&buf),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to perform search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("elasticsearch search error: %s", res.String())
	}

	var result map[string]interface{}
	if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	// Response shape:
	// { "hits": { "total": { "value": ... }, "hits": [ { "_source": ... } ] } }
	hitsMap, ok := result["hits"].(map[string]interface{})
	if !ok {
		return &domain.AlertPage{}, nil
	}

	totalMap, ok := hitsMap["total"].(map[string]interface{})
	var total int64
	if ok {
		if val, ok := totalMap["value"].(float64); ok {
			total = int64(val)
		}
	}

	hitsList, ok := hitsMap["hits"].([]interface{})
	if !ok {
		return &domain.AlertPage{}, nil
	}

	var alerts []*domain.Alert
	for _, hit := range hitsList {
		hitMap, ok := hit.(map[string]interface{})
		if !ok {
			continue
		}
		source, ok := hitMap["_source"].(map[string]interface{})
		if !ok {
			continue
		}

		// Re-marshal the source map rather than parsing it field by field.
		sourceBytes, _ := json.Marshal(source)
		var a domain.Alert
		if err := json.Unmarshal(sourceBytes, &a); err == nil {
			alerts = append(alerts, &a)
		}
	}

	return &domain.AlertPage{
		Alerts:     alerts,
		TotalCount: total,
		Page:       from/size + 1,
		PageSize:   size,
		HasMore:    total > int64(from+size),
	}, nil
}
