// Package search runs full-text service lookups against Elasticsearch.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
)

var ErrSearchFailed = errors.New("SEARCH_FAILED")

type Searcher struct {
	client *elasticsearch.Client
	index  string
	logger logger.Logger
}

func New(client *elasticsearch.Client, index string, log logger.Logger) *Searcher {
	if index == "" {
		index = "services"
	}
	return &Searcher{
		client: client,
		index:  index,
		logger: logger.ForComponent(log, "search"),
	}
}

type serviceDoc struct {
	ID              string   `json:"id"`
	TenantID        string   `json:"tenant_id"`
	Name            string   `json:"name"`
	Description     string   `json:"description"`
	Price           *float64 `json:"price"`
	Currency        string   `json:"currency"`
	Keywords        []string `json:"keywords"`
	DurationMinutes int      `json:"duration_minutes"`
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string     `json:"_id"`
			Source serviceDoc `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func buildQuery(q models.ServiceQuery) map[string]interface{} {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	return map[string]interface{}{
		"size": limit,
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []interface{}{
					map[string]interface{}{
						"multi_match": map[string]interface{}{
							"query":     q.Query,
							"fields":    []string{"name^3", "description", "keywords"},
							"fuzziness": "AUTO",
						},
					},
				},
				"filter": []interface{}{
					map[string]interface{}{
						"term": map[string]interface{}{"tenant_id": q.TenantID},
					},
				},
			},
		},
	}
}

func (s *Searcher) SearchServices(ctx context.Context, q models.ServiceQuery) ([]models.Service, error) {
	body, err := json.Marshal(buildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("%w: encode query: %v", ErrSearchFailed, err)
	}

	req := esapi.SearchRequest{
		Index: []string{s.index},
		Body:  bytes.NewReader(body),
	}
	res, err := req.Do(ctx, s.client)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("%w: %s", ErrSearchFailed, res.String())
	}

	var r searchResponse
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrSearchFailed, err)
	}

	out := make([]models.Service, 0, len(r.Hits.Hits))
	for _, hit := range r.Hits.Hits {
		doc := hit.Source
		id := doc.ID
		if id == "" {
			id = hit.ID
		}
		out = append(out, models.Service{
			ID:              id,
			TenantID:        doc.TenantID,
			Name:            doc.Name,
			Description:     doc.Description,
			Price:           doc.Price,
			Currency:        doc.Currency,
			Keywords:        doc.Keywords,
			DurationMinutes: doc.DurationMinutes,
		})
	}

	s.logger.Debug("service search", map[string]interface{}{
		"tenantId": q.TenantID,
		"query":    q.Query,
		"hits":     len(out),
	})
	return out, nil
}
