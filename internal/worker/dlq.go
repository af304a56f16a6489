package worker

// Dead letter queue: invoice jobs that cannot complete are parked in
// dlq:{original_queue} with enough context to rerun them by hand through
// POST /v1/invoices/recompute.

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	DLQPrefix = "dlq:"

	// Failure kinds that carry no ledger error kind.
	kindMalformed = "malformed_job"
	kindInternal  = "internal"
)

// DLQEntry is one parked invoice job.
type DLQEntry struct {
	OriginalQueue string `json:"original_queue"`
	EmployeeID    string `json:"employee_id,omitempty"`
	MonthRef      string `json:"month_ref,omitempty"`
	// Kind is the ledger error kind of the last failure (not_found,
	// validation_error, concurrency_conflict) or malformed_job/internal.
	Kind     string `json:"kind"`
	Reason   string `json:"reason"`
	Raw      string `json:"raw,omitempty"` // undecodable job as received
	Attempts int    `json:"attempts"`
	FailedAt string `json:"failed_at"` // RFC 3339, UTC
}

func newDLQEntry(queue string, p *InvoicePayload, attempts int, cause error) DLQEntry {
	kind := string(apperror.KindOf(cause))
	if kind == "" {
		kind = kindInternal
	}
	e := DLQEntry{
		OriginalQueue: queue,
		Kind:          kind,
		Reason:        cause.Error(),
		Attempts:      attempts,
		FailedAt:      time.Now().UTC().Format(time.RFC3339),
	}
	if p != nil {
		e.EmployeeID = p.EmployeeID.String()
		e.MonthRef = p.MonthRef
	}
	return e
}

func malformedEntry(queue, raw string, cause error) DLQEntry {
	e := newDLQEntry(queue, nil, 0, cause)
	e.Kind = kindMalformed
	e.Raw = raw
	return e
}

// SendToDLQ parks a failed job. Errors are logged; the worker carries on.
func SendToDLQ(ctx context.Context, rdb *redis.Client, e DLQEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		log.Error().Err(err).Str("queue", e.OriginalQueue).Msg("dlq: failed to marshal entry")
		return
	}

	dlqKey := DLQPrefix + e.OriginalQueue
	if err := rdb.LPush(ctx, dlqKey, data).Err(); err != nil {
		log.Error().Err(err).Str("dlq_key", dlqKey).Msg("dlq: failed to push to DLQ")
		return
	}

	log.Warn().
		Str("employee_id", e.EmployeeID).
		Str("month_ref", e.MonthRef).
		Str("kind", e.Kind).
		Str("reason", e.Reason).
		Int("attempts", e.Attempts).
		Msg("dlq: invoice job parked")
}

// DLQLength returns the number of parked jobs for monitoring.
func DLQLength(ctx context.Context, rdb *redis.Client, queue string) (int64, error) {
	return rdb.LLen(ctx, DLQPrefix+queue).Result()
}

// ReadDLQ returns up to limit parked jobs, newest first, without removing them.
func ReadDLQ(ctx context.Context, rdb *redis.Client, queue string, limit int64) ([]DLQEntry, error) {
	raw, err := rdb.LRange(ctx, DLQPrefix+queue, 0, limit-1).Result()
	if err != nil {
		return nil, err
	}
	entries := make([]DLQEntry, 0, len(raw))
	for _, r := range raw {
		var e DLQEntry
		if err := json.Unmarshal([]byte(r), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	return entries, nil
}
