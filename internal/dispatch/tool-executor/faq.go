package toolexecutor

import (
	"context"
	"fmt"
	"sort"
	"strings"

	intentclassifier "clinic-dispatcher/internal/dispatch/intent-classifier"
	"clinic-dispatcher/internal/models"
)

type faqHit struct {
	entry models.FAQEntry
	hits  int
}

func (h *Handler) handleFAQ(ctx context.Context, req *request) (*models.ExecutionResult, error) {
	entries, err := h.faq.FAQ(ctx, req.tenantID())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFAQLookupFailed, err)
	}

	ranked := rankFAQ(entries, req.match.Arg("query"), req.lang())
	if len(ranked) == 0 {
		res := success(reply(req.lang(), msgFAQNotFound))
		res.SetMeta("matches", 0)
		return res, nil
	}
	if len(ranked) > h.config.MaxFAQResults {
		ranked = ranked[:h.config.MaxFAQResults]
	}

	pairs := make([]string, len(ranked))
	ids := make([]string, len(ranked))
	for i, r := range ranked {
		pairs[i] = fmt.Sprintf("Q: %s\nA: %s", r.entry.Question, r.entry.Answer)
		ids[i] = r.entry.ID
	}

	res := success(strings.Join(pairs, "\n\n"))
	res.SetMeta("matches", len(ranked))
	res.SetMeta("faq_ids", ids)
	return res, nil
}

// rankFAQ keeps entries whose question, answer or tags contain any query term,
// ordered by priority and then by how many terms matched.
func rankFAQ(entries []models.FAQEntry, query, lang string) []faqHit {
	query = intentclassifier.Normalize(query, lang)
	terms := strings.Fields(query)
	if len(terms) == 0 {
		return nil
	}

	var out []faqHit
	for _, e := range entries {
		haystack := intentclassifier.Normalize(e.Question+" "+e.Answer+" "+strings.Join(e.Tags, " "), lang)
		hits := 0
		for _, term := range terms {
			if strings.Contains(haystack, term) {
				hits++
			}
		}
		if len(terms) > 1 && strings.Contains(haystack, query) {
			hits++
		}
		if hits > 0 {
			out = append(out, faqHit{entry: e, hits: hits})
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].entry.Priority != out[j].entry.Priority {
			return out[i].entry.Priority > out[j].entry.Priority
		}
		return out[i].hits > out[j].hits
	})
	return out
}
