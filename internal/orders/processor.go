package orders

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/logging"
	"github.com/ordermesh/tokengate/internal/telemetry"
)

// DefaultConcurrency bounds the number of order updates in flight per job.
const DefaultConcurrency = 5

// Updater dispatches one order update upstream. Satisfied by
// *commerce.Client.
type Updater interface {
	UpdateOrder(ctx context.Context, accountID, customerID string, items []commerce.UpdateItem) (map[string]interface{}, error)
}

// Processor owns the job table and runs dispatch with a fixed worker pool.
// A job, once created, always runs to completion: there is no cancellation
// and the per-order failures never stop the rest of the batch.
type Processor struct {
	jobs        *JobStore
	updater     Updater
	concurrency int
	logger      *logging.Logger
}

// NewProcessor creates a processor dispatching through updater with the
// given worker count. Non-positive concurrency falls back to
// DefaultConcurrency.
func NewProcessor(jobs *JobStore, updater Updater, concurrency int, logger *logging.Logger) *Processor {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Processor{
		jobs:        jobs,
		updater:     updater,
		concurrency: concurrency,
		logger:      logger,
	}
}

// CreateJob partitions the mutations into dispatchable and invalid orders,
// records the job, and starts dispatch in the background. It returns the
// job id immediately; callers observe progress through GetJob.
func (p *Processor) CreateJob(mutations []OrderMutation) string {
	var valid []OrderMutation
	var invalid []InvalidOrder
	for _, m := range mutations {
		if m.Dispatchable() {
			valid = append(valid, m)
			continue
		}
		invalid = append(invalid, InvalidOrder{OrderID: m.OrderID, Errors: m.ItemErrors})
	}

	job := &Job{
		Status:  StatusProcessing,
		Created: time.Now().UTC(),
		Stats:   JobStats{Total: len(valid)},
		Results: []OrderResult{},
		Errors:  []OrderError{},
		Invalid: invalid,
	}
	if job.Invalid == nil {
		job.Invalid = []InvalidOrder{}
	}
	id := p.jobs.Create(job)
	telemetry.JobsCreated.Inc()
	p.logger.Info("job %s created: %d orders accepted, %d rejected", id, len(valid), len(invalid))

	go p.dispatch(id, valid)
	return id
}

// GetJob returns a snapshot of the job.
func (p *Processor) GetJob(id string) (Job, bool) {
	return p.jobs.Get(id)
}

// dispatch feeds the orders to a fixed pool of workers and marks the job
// completed exactly once, after every worker has drained. Dispatch is
// detached from the request that created the job, so the request context
// never cancels it.
func (p *Processor) dispatch(jobID string, mutations []OrderMutation) {
	queue := make(chan OrderMutation)
	var wg sync.WaitGroup
	for i := 0; i < p.concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range queue {
				p.processOrder(jobID, m)
			}
		}()
	}

	for _, m := range mutations {
		queue <- m
	}
	close(queue)
	wg.Wait()

	p.jobs.Update(jobID, func(job *Job) {
		job.Status = StatusCompleted
		job.Completed = time.Now().UTC()
	})
	p.logger.Info("job %s completed", jobID)
}

func (p *Processor) processOrder(jobID string, m OrderMutation) {
	telemetry.DispatchInFlight.Inc()
	defer telemetry.DispatchInFlight.Dec()

	if len(m.Items) == 0 {
		p.recordFailure(jobID, m.OrderID, "no valid items to process")
		return
	}

	accountID, customerID, ok := splitOrderID(m.OrderID)
	if !ok {
		p.recordFailure(jobID, m.OrderID, "invalid order id format")
		return
	}

	result, err := p.updater.UpdateOrder(context.Background(), accountID, customerID, m.Items)
	if err != nil {
		p.recordFailure(jobID, m.OrderID, err.Error())
		return
	}

	p.jobs.Update(jobID, func(job *Job) {
		job.Results = append(job.Results, OrderResult{OrderID: m.OrderID, Result: result})
		job.Stats.Succeeded++
	})
	telemetry.OrdersSucceeded.Inc()
}

func (p *Processor) recordFailure(jobID, orderID, message string) {
	p.jobs.Update(jobID, func(job *Job) {
		job.Errors = append(job.Errors, OrderError{OrderID: orderID, Error: message})
		job.Stats.Failed++
	})
	telemetry.OrdersFailed.Inc()
	p.logger.Warn("job %s: order %s failed: %s", jobID, orderID, message)
}

// splitOrderID reads the account and customer ids out of the order name
// ("accounts/{accountId}/customers/{customerId}/orders/{orderId}"). Names
// with fewer than five segments are malformed.
func splitOrderID(orderID string) (accountID, customerID string, ok bool) {
	parts := strings.Split(orderID, "/")
	if len(parts) < 5 {
		return "", "", false
	}
	return parts[1], parts[3], true
}
