package search

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupES(t *testing.T, handler http.HandlerFunc) *elasticsearch.Client {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		handler(w, r)
	}))
	t.Cleanup(srv.Close)

	client, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client
}

func TestBuildQuery(t *testing.T) {
	q := buildQuery(models.ServiceQuery{TenantID: "t1", Query: "cleaning"})

	raw, err := json.Marshal(q)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"size": 5,
		"query": {"bool": {
			"must": [{"multi_match": {"query": "cleaning", "fields": ["name^3", "description", "keywords"], "fuzziness": "AUTO"}}],
			"filter": [{"term": {"tenant_id": "t1"}}]
		}}
	}`, string(raw))
}

func TestSearcher_SearchServices(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	client := setupES(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		_, _ = w.Write([]byte(`{"hits": {"hits": [
			{"_id": "es-1", "_source": {"id": "s1", "tenant_id": "t1", "name": "Teeth cleaning", "price": 80, "currency": "USD"}},
			{"_id": "es-2", "_source": {"tenant_id": "t1", "name": "Deep cleaning", "keywords": ["scaling"]}}
		]}}`))
	})

	s := New(client, "clinic-services", logger.NewTestLogger(t))
	services, err := s.SearchServices(context.Background(), models.ServiceQuery{TenantID: "t1", Query: "cleaning", Limit: 3})

	require.NoError(t, err)
	assert.Equal(t, "/clinic-services/_search", gotPath)
	assert.Equal(t, float64(3), gotBody["size"])
	require.Len(t, services, 2)
	assert.Equal(t, "s1", services[0].ID)
	require.NotNil(t, services[0].Price)
	assert.Equal(t, 80.0, *services[0].Price)
	assert.Equal(t, "es-2", services[1].ID)
	assert.Nil(t, services[1].Price)
	assert.Equal(t, []string{"scaling"}, services[1].Keywords)
}

func TestSearcher_ErrorResponse(t *testing.T) {
	client := setupES(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error": "cluster unavailable"}`))
	})

	_, err := New(client, "", nil).SearchServices(context.Background(), models.ServiceQuery{TenantID: "t1", Query: "x"})

	assert.ErrorIs(t, err, ErrSearchFailed)
}
