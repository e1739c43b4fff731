package catalog

import (
	"context"
	"strings"

	"clinic-dispatcher/internal/models"

	"github.com/sahilm/fuzzy"
)

type serviceNames []models.Service

func (s serviceNames) String(i int) string { return strings.ToLower(s[i].Name) }
func (s serviceNames) Len() int            { return len(s) }

// SearchServices matches the cached table in three passes: exact name,
// substring over name, description and keywords, then fuzzy name match.
func (c *Catalog) SearchServices(ctx context.Context, q models.ServiceQuery) ([]models.Service, error) {
	services, err := c.Services(ctx, q.TenantID)
	if err != nil {
		return nil, err
	}
	return matchServices(services, q.Query, q.Limit), nil
}

func matchServices(services []models.Service, query string, limit int) []models.Service {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(services) == 0 {
		return nil
	}
	if limit <= 0 {
		limit = 5
	}

	picked := make(map[int]bool)
	var out []models.Service
	add := func(i int) bool {
		if !picked[i] {
			picked[i] = true
			out = append(out, services[i])
		}
		return len(out) >= limit
	}

	for i, s := range services {
		if strings.ToLower(s.Name) == query && add(i) {
			return out
		}
	}

	for i, s := range services {
		if containsService(s, query) && add(i) {
			return out
		}
	}

	for _, m := range fuzzy.FindFrom(query, serviceNames(services)) {
		if add(m.Index) {
			return out
		}
	}
	return out
}

func containsService(s models.Service, query string) bool {
	if strings.Contains(strings.ToLower(s.Name), query) || strings.Contains(strings.ToLower(s.Description), query) {
		return true
	}
	for _, k := range s.Keywords {
		k = strings.ToLower(k)
		if k == "" {
			continue
		}
		if strings.Contains(k, query) || strings.Contains(query, k) {
			return true
		}
	}
	return false
}
