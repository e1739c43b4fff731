package toolexecutor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"clinic-dispatcher/internal/models"
)

const dateLayout = "2006-01-02"

func (h *Handler) handleAvailability(ctx context.Context, req *request) (*models.ExecutionResult, error) {
	date := req.match.Arg("date")
	if date == "" {
		return missingArgument("date", reply(req.lang(), msgDateMissing)), nil
	}

	slots, err := h.slots.GetAvailableSlots(ctx, date, h.config.SlotDurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSlotLookupFailed, err)
	}

	if len(slots) == 0 {
		next := nextDay(date)
		res := success(reply(req.lang(), msgSlotsNone, date, next))
		res.SetMeta("date", date)
		res.SetMeta("next_date", next)
		res.SetMeta("slots", []models.Slot{})
		return res, nil
	}
	if len(slots) > h.config.MaxSlots {
		slots = slots[:h.config.MaxSlots]
	}

	loc := req.session.Location(h.config.Location)
	lines := make([]string, 0, len(slots)+2)
	lines = append(lines, reply(req.lang(), msgSlotsHeader, date))
	for i, s := range slots {
		line := fmt.Sprintf("%d. %s", i+1, s.Start.In(loc).Format("15:04"))
		if s.DoctorName != "" {
			line += " - " + s.DoctorName
		}
		lines = append(lines, line)
	}
	lines = append(lines, reply(req.lang(), msgSlotsCTA))

	res := success(strings.Join(lines, "\n"))
	res.SetMeta("date", date)
	res.SetMeta("slots", slots)
	return res, nil
}

func nextDay(date string) string {
	d, err := time.Parse(dateLayout, date)
	if err != nil {
		return date
	}
	return d.AddDate(0, 0, 1).Format(dateLayout)
}
