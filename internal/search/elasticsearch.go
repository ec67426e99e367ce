package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"hostelgate/internal/config"
	"hostelgate/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

// GuestDocument is the indexed projection of a guest record.
type GuestDocument struct {
	ID                int64     `json:"id"`
	ReservationNumber string    `json:"reservation_number"`
	FullName          string    `json:"full_name"`
	DocumentNumber    string    `json:"document_number"`
	Nationality       string    `json:"nationality"`
	Phone             string    `json:"phone"`
	Email             string    `json:"email"`
	CreatedAt         time.Time `json:"created_at"`
}

func NewGuestDocument(g *models.GuestRecord) GuestDocument {
	return GuestDocument{
		ID:                g.ID,
		ReservationNumber: g.ReservationNumber,
		FullName:          g.FullName,
		DocumentNumber:    g.DocumentNumber,
		Nationality:       g.Nationality,
		Phone:             g.Phone,
		Email:             g.Email,
		CreatedAt:         g.CreatedAt,
	}
}

// ElasticsearchClient maintains the guest index.
type ElasticsearchClient struct {
	client *elasticsearch.Client
	config config.ElasticsearchConfig
}

// NewElasticsearchClient connects and creates the index when missing.
func NewElasticsearchClient(cfg config.ElasticsearchConfig) (*ElasticsearchClient, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses:     []string{cfg.URL},
		Username:      cfg.Username,
		Password:      cfg.Password,
		RetryOnStatus: []int{502, 503, 504, 429},
		MaxRetries:    cfg.MaxRetries,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	client := &ElasticsearchClient{
		client: es,
		config: cfg,
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()
	if err := client.ensureIndex(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure index exists: %w", err)
	}

	return client, nil
}

// guestIndexMapping folds accents so "Lopez" finds "López".
var guestIndexMapping = map[string]any{
	"settings": map[string]any{
		"number_of_shards":   1,
		"number_of_replicas": 0,
		"analysis": map[string]any{
			"analyzer": map[string]any{
				"name_analyzer": map[string]any{
					"type":      "custom",
					"tokenizer": "standard",
					"filter":    []string{"lowercase", "asciifolding"},
				},
			},
		},
	},
	"mappings": map[string]any{
		"properties": map[string]any{
			"id":                 map[string]any{"type": "long"},
			"reservation_number": map[string]any{"type": "keyword"},
			"full_name": map[string]any{
				"type":     "text",
				"analyzer": "name_analyzer",
				"fields": map[string]any{
					"keyword": map[string]any{"type": "keyword", "ignore_above": 256},
				},
			},
			"document_number": map[string]any{"type": "keyword"},
			"nationality":     map[string]any{"type": "keyword"},
			"phone":           map[string]any{"type": "keyword"},
			"email":           map[string]any{"type": "keyword"},
			"created_at":      map[string]any{"type": "date"},
		},
	},
}

func (c *ElasticsearchClient) ensureIndex(ctx context.Context) error {
	req := esapi.IndicesExistsRequest{
		Index: []string{c.config.Index},
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to check index existence: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		slog.Info("Elasticsearch index already exists", "index", c.config.Index)
		return nil
	}

	mappingJSON, err := json.Marshal(guestIndexMapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping: %w", err)
	}

	createReq := esapi.IndicesCreateRequest{
		Index: c.config.Index,
		Body:  bytes.NewReader(mappingJSON),
	}

	createRes, err := createReq.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer createRes.Body.Close()

	if createRes.IsError() {
		return fmt.Errorf("failed to create index: %s", createRes.String())
	}

	slog.Info("Created Elasticsearch index", "index", c.config.Index)
	return nil
}

func (c *ElasticsearchClient) IndexGuest(ctx context.Context, doc GuestDocument) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal guest: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(doc.ID, 10),
		Body:       bytes.NewReader(body),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to index guest: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("indexing error: %s", res.String())
	}
	return nil
}

// DeleteGuest removes a guest document. A missing document is not an error.
func (c *ElasticsearchClient) DeleteGuest(ctx context.Context, id int64) error {
	req := esapi.DeleteRequest{
		Index:      c.config.Index,
		DocumentID: strconv.FormatInt(id, 10),
		Refresh:    "wait_for",
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("failed to delete guest: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("delete error: %s", res.String())
	}
	return nil
}

// SearchGuestIDs returns matching guest ids ordered by relevance.
func (c *ElasticsearchClient) SearchGuestIDs(ctx context.Context, query string, from, size int) ([]int64, error) {
	if size <= 0 {
		size = 20
	}

	searchRequest := map[string]any{
		"query":   buildGuestQuery(query),
		"sort":    buildSortQuery(query),
		"from":    from,
		"size":    size,
		"_source": []string{"id"},
	}

	searchJSON, err := json.Marshal(searchRequest)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal search query: %w", err)
	}

	req := esapi.SearchRequest{
		Index: []string{c.config.Index},
		Body:  bytes.NewReader(searchJSON),
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return nil, fmt.Errorf("failed to execute search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var response struct {
		Hits struct {
			Hits []struct {
				Source struct {
					ID int64 `json:"id"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	ids := make([]int64, len(response.Hits.Hits))
	for i, hit := range response.Hits.Hits {
		ids[i] = hit.Source.ID
	}
	return ids, nil
}

// buildGuestQuery matches names fuzzily and identifiers exactly.
func buildGuestQuery(query string) map[string]any {
	query = strings.TrimSpace(query)
	if query == "" {
		return map[string]any{"match_all": map[string]any{}}
	}

	return map[string]any{
		"bool": map[string]any{
			"should": []map[string]any{
				{"match": map[string]any{
					"full_name": map[string]any{"query": query, "fuzziness": "AUTO"},
				}},
				{"term": map[string]any{"reservation_number": map[string]any{"value": query, "boost": 3}}},
				{"term": map[string]any{"document_number": map[string]any{"value": query, "boost": 3}}},
				{"term": map[string]any{"email": strings.ToLower(query)}},
				{"term": map[string]any{"phone": query}},
			},
			"minimum_should_match": 1,
		},
	}
}

func buildSortQuery(query string) []map[string]any {
	if strings.TrimSpace(query) != "" {
		return []map[string]any{
			{"_score": map[string]any{"order": "desc"}},
			{"created_at": map[string]any{"order": "desc"}},
		}
	}
	return []map[string]any{
		{"created_at": map[string]any{"order": "desc"}},
	}
}

// HealthCheck waits up to 10s for a yellow cluster.
func (c *ElasticsearchClient) HealthCheck(ctx context.Context) error {
	req := esapi.ClusterHealthRequest{
		WaitForStatus: "yellow",
		Timeout:       10 * time.Second,
	}

	res, err := req.Do(ctx, c.client)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("health check error: %s", res.String())
	}
	return nil
}
