package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/rmgimenez/php-cantina-sub001/internal/apperror"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueInvoice = "jobs:invoice"
	delayedQueue = "jobs:invoice:delayed"

	jobInvoiceRecompute = "invoice_recompute"
	pendingPrefix       = "jobs:invoice:pending:"
	pendingTTL          = 10 * time.Minute

	// MaxAttempts before a job is parked in the dead letter queue.
	MaxAttempts    = 5
	retryBaseDelay = 5 * time.Second
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
}

// InvoicePayload identifies one employee invoice.
type InvoicePayload struct {
	EmployeeID uuid.UUID `json:"employee_id"`
	MonthRef   string    `json:"month_ref"`
}

func (p InvoicePayload) pendingKey() string {
	return pendingPrefix + p.EmployeeID.String() + ":" + p.MonthRef
}

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// ScheduleRecompute pushes an invoice recompute job. A burst of payroll sales
// for the same employee and month collapses into one queued job.
func (d *Dispatcher) ScheduleRecompute(ctx context.Context, employeeID uuid.UUID, monthRef string) error {
	p := InvoicePayload{EmployeeID: employeeID, MonthRef: monthRef}
	fresh, err := d.rdb.SetNX(ctx, p.pendingKey(), 1, pendingTTL).Result()
	if err != nil {
		return err
	}
	if !fresh {
		return nil
	}
	if err := d.enqueue(ctx, QueueInvoice, jobInvoiceRecompute, p, 0); err != nil {
		_ = d.rdb.Del(ctx, p.pendingKey()).Err()
		return err
	}
	return nil
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}, attempts int) error {
	encoded, err := encodeJob(jobType, payload, attempts)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

func encodeJob(jobType string, payload interface{}, attempts int) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Job{Type: jobType, Payload: data, Attempts: attempts})
}

// Recomputer is the slice of the invoice service the pool needs.
type Recomputer interface {
	RecomputeInvoice(ctx context.Context, employeeID uuid.UUID, monthRef string) error
}

// RecomputeFunc adapts a plain function to Recomputer.
type RecomputeFunc func(ctx context.Context, employeeID uuid.UUID, monthRef string) error

func (f RecomputeFunc) RecomputeInvoice(ctx context.Context, employeeID uuid.UUID, monthRef string) error {
	return f(ctx, employeeID, monthRef)
}

// StartWorkerPool launches numWorkers goroutines consuming the invoice queue.
// Each goroutine blocks on BRPOP, zero CPU when idle.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, rc Recomputer, numWorkers int) {
	d := NewDispatcher(rdb)
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, d, rc, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, d *Dispatcher, rc Recomputer, id int) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			d.promoteDue(ctx)
			// Blocking pop: waits up to 2s then loops to check ctx and delayed jobs
			result, err := d.rdb.BRPop(ctx, 2*time.Second, QueueInvoice).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			d.processJob(ctx, rc, result[0], result[1])
		}
	}
}

type stepAction int

const (
	stepDone stepAction = iota
	stepRetry
	stepDeadLetter
)

// jobStep is what happens to a job after one run.
type jobStep struct {
	action   stepAction
	attempts int
	delay    time.Duration
	err      error
}

// runJob recomputes one invoice and decides the job's fate. Only
// ConcurrencyConflict is worth another run; every other failure is final and
// goes straight to the dead letter queue.
func runJob(ctx context.Context, rc Recomputer, job *Job, p *InvoicePayload) jobStep {
	err := rc.RecomputeInvoice(ctx, p.EmployeeID, p.MonthRef)
	attempts := job.Attempts + 1
	switch {
	case err == nil:
		return jobStep{action: stepDone, attempts: attempts}
	case !apperror.IsRetryable(err) || attempts >= MaxAttempts:
		return jobStep{action: stepDeadLetter, attempts: attempts, err: err}
	default:
		return jobStep{action: stepRetry, attempts: attempts, delay: retryDelay(attempts), err: err}
	}
}

// retryDelay grows linearly with the attempts already spent.
func retryDelay(attempts int) time.Duration {
	return time.Duration(attempts) * retryBaseDelay
}

// processJob runs one raw job taken from queue and applies the outcome.
func (d *Dispatcher) processJob(ctx context.Context, rc Recomputer, queue, raw string) {
	job, p, err := decodeInvoiceJob(raw)
	if err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to decode job")
		SendToDLQ(ctx, d.rdb, malformedEntry(queue, raw, err))
		return
	}

	// Clear the marker first so sales committed during the recompute queue a fresh run.
	_ = d.rdb.Del(ctx, p.pendingKey()).Err()

	step := runJob(ctx, rc, job, p)
	switch step.action {
	case stepDone:
		log.Info().
			Str("employee_id", p.EmployeeID.String()).
			Str("month_ref", p.MonthRef).
			Int("attempt", step.attempts).
			Msg("invoice recomputed")
	case stepRetry:
		log.Warn().Err(step.err).
			Str("employee_id", p.EmployeeID.String()).
			Str("month_ref", p.MonthRef).
			Int("attempt", step.attempts).
			Dur("delay", step.delay).
			Msg("invoice recompute conflicted, retry scheduled")
		if qErr := d.enqueueLater(ctx, *p, step.attempts, step.delay); qErr != nil {
			SendToDLQ(ctx, d.rdb, newDLQEntry(queue, p, step.attempts, qErr))
		}
	case stepDeadLetter:
		SendToDLQ(ctx, d.rdb, newDLQEntry(queue, p, step.attempts, step.err))
	}
}

// enqueueLater parks a job in the delayed set until its retry time.
func (d *Dispatcher) enqueueLater(ctx context.Context, p InvoicePayload, attempts int, delay time.Duration) error {
	encoded, err := encodeJob(jobInvoiceRecompute, p, attempts)
	if err != nil {
		return err
	}
	readyAt := time.Now().Add(delay).UnixMilli()
	return d.rdb.ZAdd(ctx, delayedQueue, redis.Z{Score: float64(readyAt), Member: encoded}).Err()
}

// promoteScript moves one delayed job to the live queue. Only the worker
// whose ZREM succeeds pushes it, so a job is never promoted twice.
var promoteScript = redis.NewScript(`
if redis.call('ZREM', KEYS[1], ARGV[1]) == 1 then
	redis.call('LPUSH', KEYS[2], ARGV[1])
	return 1
end
return 0
`)

// promoteDue moves delayed jobs whose retry time has passed onto the queue.
func (d *Dispatcher) promoteDue(ctx context.Context) {
	due, err := d.rdb.ZRangeByScore(ctx, delayedQueue, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(time.Now().UnixMilli(), 10),
		Count: 50,
	}).Result()
	if err != nil {
		return
	}
	for _, member := range due {
		if err := promoteScript.Run(ctx, d.rdb, []string{delayedQueue, QueueInvoice}, member).Err(); err != nil {
			log.Warn().Err(err).Msg("failed to promote delayed invoice job")
		}
	}
}

func decodeInvoiceJob(raw string) (*Job, *InvoicePayload, error) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		return nil, nil, err
	}
	if job.Type != jobInvoiceRecompute {
		return nil, nil, fmt.Errorf("unexpected job type %q", job.Type)
	}
	var p InvoicePayload
	if err := json.Unmarshal(job.Payload, &p); err != nil {
		return nil, nil, err
	}
	if p.EmployeeID == uuid.Nil || p.MonthRef == "" {
		return nil, nil, fmt.Errorf("incomplete invoice payload")
	}
	return &job, &p, nil
}
