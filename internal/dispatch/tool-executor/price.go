package toolexecutor

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"clinic-dispatcher/internal/models"
)

func (h *Handler) handlePrice(ctx context.Context, req *request) (*models.ExecutionResult, error) {
	query := req.match.Arg("query")
	if query == "" && req.memory != nil {
		query = req.memory.LastService
	}
	if query == "" {
		return success(reply(req.lang(), msgPriceWhich)), nil
	}

	q := models.ServiceQuery{
		TenantID:  req.tenantID(),
		Query:     query,
		Limit:     h.config.MaxServices,
		SessionID: req.sessionID(),
	}

	services, err := h.primarySearch.SearchServices(ctx, q)
	if err != nil {
		if h.fallbackSearch == nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
		}
		h.logger.Warn("primary service search failed, using fallback", map[string]interface{}{
			"error":    err,
			"tenantId": q.TenantID,
		})
		services, err = h.fallbackSearch.SearchServices(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrSearchFailed, err)
		}
	}

	services = dedupeServices(services, h.config.MaxServices)
	if len(services) == 0 {
		res := success(reply(req.lang(), msgPriceNotFound, query))
		res.SetMeta("query", query)
		return res, nil
	}

	lines := make([]string, 0, len(services)+1)
	lines = append(lines, reply(req.lang(), msgPriceHeader))
	ids := make([]string, len(services))
	for i, s := range services {
		line := fmt.Sprintf("- %s: %s", s.Name, h.formatPrice(s, req.lang()))
		if s.Description != "" {
			line += " (" + truncate(s.Description, h.config.DescriptionLimit) + ")"
		}
		lines = append(lines, line)
		ids[i] = s.ID
	}

	res := success(strings.Join(lines, "\n"))
	res.SetMeta("query", query)
	res.SetMeta("service_ids", ids)
	return res, nil
}

func (h *Handler) formatPrice(s models.Service, lang string) string {
	if s.Price == nil {
		return reply(lang, msgPriceContact)
	}
	amount := strconv.FormatFloat(*s.Price, 'f', 2, 64)
	amount = strings.TrimSuffix(amount, ".00")
	if s.Currency == "" {
		return amount
	}
	return amount + " " + s.Currency
}

func dedupeServices(services []models.Service, limit int) []models.Service {
	seen := make(map[string]bool, len(services))
	out := make([]models.Service, 0, len(services))
	for _, s := range services {
		if seen[s.ID] {
			continue
		}
		seen[s.ID] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

// truncate cuts s to at most limit runes, marking the cut with an ellipsis.
func truncate(s string, limit int) string {
	r := []rune(s)
	if len(r) <= limit {
		return s
	}
	return strings.TrimSpace(string(r[:limit])) + "…"
}
