// Package persistence is the Postgres-backed booking, slot and catalog store.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"clinic-dispatcher/internal/common/logger"
	"clinic-dispatcher/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const (
	uniqueViolation = "23505"
	dateLayout      = "2006-01-02"
	defaultHoldTTL  = 10 * time.Minute
	maxSlotRows     = 50
)

var (
	ErrDatabase    = errors.New("DATABASE_ERROR")
	ErrInvalidDate = errors.New("INVALID_DATE")
)

type Store struct {
	db      *sql.DB
	logger  logger.Logger
	holdTTL time.Duration
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:      db,
		logger:  logger.ForComponent(log, "persistence"),
		holdTTL: defaultHoldTTL,
	}
}

// CreateHold inserts a hold keyed by its idempotency key. A repeated key
// returns the hold created the first time, reviving it with a fresh expiry
// when an earlier confirm failure released it. A competing hold on the same
// slot is reported as an unsuccessful result.
func (s *Store) CreateHold(ctx context.Context, req models.HoldRequest) (*models.HoldResult, error) {
	query := `
		INSERT INTO appointment_holds
			(id, tenant_id, slot_id, doctor_id, service_id, patient_id, start_time, end_time, idempotency_key, status, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'held', $10)
		ON CONFLICT (idempotency_key) DO UPDATE SET
			status = CASE WHEN appointment_holds.status = 'released' THEN 'held' ELSE appointment_holds.status END,
			expires_at = CASE WHEN appointment_holds.status = 'released' THEN EXCLUDED.expires_at ELSE appointment_holds.expires_at END,
			release_reason = CASE WHEN appointment_holds.status = 'released' THEN NULL ELSE appointment_holds.release_reason END,
			released_at = CASE WHEN appointment_holds.status = 'released' THEN NULL ELSE appointment_holds.released_at END
		RETURNING id, status`

	var holdID, status string
	err := s.db.QueryRowContext(ctx, query,
		uuid.NewString(), req.TenantID, req.SlotID, nullable(req.DoctorID), nullable(req.ServiceID),
		nullable(req.PatientID), req.Start, req.End, req.IdempotencyKey, time.Now().UTC().Add(s.holdTTL),
	).Scan(&holdID, &status)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			s.logger.Info("slot already held", map[string]interface{}{
				"slotId":     req.SlotID,
				"constraint": pqErr.Constraint,
			})
			return &models.HoldResult{Success: false, Message: "Sorry, that slot was just taken. Please choose another time."}, nil
		}
		return nil, fmt.Errorf("%w: create hold: %v", ErrDatabase, err)
	}

	if status != "held" && status != "confirmed" {
		return &models.HoldResult{Success: false, HoldID: holdID, Message: "That hold is no longer available. Please pick the slot again."}, nil
	}
	return &models.HoldResult{Success: true, HoldID: holdID}, nil
}

// ConfirmHold turns a live hold into an appointment in one transaction.
func (s *Store) ConfirmHold(ctx context.Context, holdID, idempotencyKey string) (*models.ConfirmResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin: %v", ErrDatabase, err)
	}
	defer tx.Rollback() //nolint:errcheck

	var appointmentID string
	err = tx.QueryRowContext(ctx, `SELECT id FROM appointments WHERE idempotency_key = $1`, idempotencyKey).Scan(&appointmentID)
	switch {
	case err == nil:
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("%w: commit: %v", ErrDatabase, err)
		}
		return &models.ConfirmResult{Success: true, AppointmentID: appointmentID}, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("%w: lookup appointment: %v", ErrDatabase, err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE appointment_holds SET status = 'confirmed', confirmed_at = NOW()
		WHERE id = $1 AND status = 'held' AND expires_at > NOW()`, holdID)
	if err != nil {
		return nil, fmt.Errorf("%w: confirm hold: %v", ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err != nil || n == 0 {
		return &models.ConfirmResult{Success: false, Message: "hold expired or not found"}, nil
	}

	appointmentID = uuid.NewString()
	_, err = tx.ExecContext(ctx, `
		INSERT INTO appointments
			(id, hold_id, tenant_id, slot_id, doctor_id, service_id, patient_id, start_time, end_time, idempotency_key, status, created_at)
		SELECT $1, id, tenant_id, slot_id, doctor_id, service_id, patient_id, start_time, end_time, $2, 'scheduled', NOW()
		FROM appointment_holds WHERE id = $3`, appointmentID, idempotencyKey, holdID)
	if err != nil {
		return nil, fmt.Errorf("%w: insert appointment: %v", ErrDatabase, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit: %v", ErrDatabase, err)
	}
	return &models.ConfirmResult{Success: true, AppointmentID: appointmentID}, nil
}

// ReleaseHold is a no-op for holds that are no longer held.
func (s *Store) ReleaseHold(ctx context.Context, holdID, reason string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE appointment_holds SET status = 'released', release_reason = $2, released_at = NOW()
		WHERE id = $1 AND status = 'held'`, holdID, reason)
	if err != nil {
		return fmt.Errorf("%w: release hold: %v", ErrDatabase, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		s.logger.Debug("release found no live hold", map[string]interface{}{"holdId": holdID})
	}
	return nil
}

func (s *Store) SearchServices(ctx context.Context, q models.ServiceQuery) ([]models.Service, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 5
	}
	pattern := "%" + strings.TrimSpace(q.Query) + "%"

	rows, err := s.db.QueryContext(ctx, serviceSelect+`
		WHERE tenant_id = $1 AND active
		  AND (name ILIKE $2 OR description ILIKE $2 OR array_to_string(keywords, ' ') ILIKE $2)
		ORDER BY name
		LIMIT $3`, q.TenantID, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: search services: %v", ErrDatabase, err)
	}
	defer rows.Close()
	return scanServices(rows)
}

func (s *Store) ListServices(ctx context.Context, tenantID string) ([]models.Service, error) {
	rows, err := s.db.QueryContext(ctx, serviceSelect+`
		WHERE tenant_id = $1 AND active
		ORDER BY name`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: list services: %v", ErrDatabase, err)
	}
	defer rows.Close()
	return scanServices(rows)
}

func (s *Store) ListFAQ(ctx context.Context, tenantID string) ([]models.FAQEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, tenant_id, question, answer, COALESCE(array_to_string(tags, ','), ''), priority
		FROM faq_entries
		WHERE tenant_id = $1
		ORDER BY priority DESC, id`, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: list faq: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []models.FAQEntry
	for rows.Next() {
		var e models.FAQEntry
		var tags string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.Question, &e.Answer, &tags, &e.Priority); err != nil {
			return nil, fmt.Errorf("%w: scan faq: %v", ErrDatabase, err)
		}
		e.Tags = splitList(tags)
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetAvailableSlots reads the precomputed slot table for one calendar day.
func (s *Store) GetAvailableSlots(ctx context.Context, date string, durationMinutes int) ([]models.Slot, error) {
	day, err := time.Parse(dateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDate, date)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.doctor_id, COALESCE(d.name, ''), COALESCE(s.service_id, ''), s.start_time, s.end_time
		FROM available_slots s
		LEFT JOIN doctors d ON d.id = s.doctor_id
		WHERE s.slot_date = $1 AND s.duration_minutes = $2 AND NOT s.booked
		ORDER BY s.start_time
		LIMIT $3`, day, durationMinutes, maxSlotRows)
	if err != nil {
		return nil, fmt.Errorf("%w: available slots: %v", ErrDatabase, err)
	}
	defer rows.Close()

	var out []models.Slot
	for rows.Next() {
		var slot models.Slot
		if err := rows.Scan(&slot.ID, &slot.DoctorID, &slot.DoctorName, &slot.ServiceID, &slot.Start, &slot.End); err != nil {
			return nil, fmt.Errorf("%w: scan slot: %v", ErrDatabase, err)
		}
		out = append(out, slot)
	}
	return out, rows.Err()
}

const serviceSelect = `
		SELECT id, tenant_id, name, COALESCE(description, ''), price, COALESCE(currency, ''),
		       COALESCE(array_to_string(keywords, ','), ''), COALESCE(duration_minutes, 0)
		FROM services`

func scanServices(rows *sql.Rows) ([]models.Service, error) {
	var out []models.Service
	for rows.Next() {
		var svc models.Service
		var price sql.NullFloat64
		var keywords string
		if err := rows.Scan(&svc.ID, &svc.TenantID, &svc.Name, &svc.Description, &price, &svc.Currency, &keywords, &svc.DurationMinutes); err != nil {
			return nil, fmt.Errorf("%w: scan service: %v", ErrDatabase, err)
		}
		if price.Valid {
			p := price.Float64
			svc.Price = &p
		}
		svc.Keywords = splitList(keywords)
		out = append(out, svc)
	}
	return out, rows.Err()
}

func splitList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
