package orders

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ordermesh/tokengate/internal/commerce"
	"github.com/ordermesh/tokengate/internal/logging"
)

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

func testLogger(t *testing.T) *logging.Logger {
	return logging.NewWithWriter(testWriter{t: t}, true)
}

// fakeUpdater records every dispatched update and fails orders whose
// account id appears in failAccounts.
type fakeUpdater struct {
	mu           sync.Mutex
	calls        []updateCall
	failAccounts map[string]string
}

type updateCall struct {
	accountID  string
	customerID string
	items      []commerce.UpdateItem
}

func (f *fakeUpdater) UpdateOrder(_ context.Context, accountID, customerID string, items []commerce.UpdateItem) (map[string]interface{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, updateCall{accountID: accountID, customerID: customerID, items: items})
	if msg, ok := f.failAccounts[accountID]; ok {
		return nil, errString(msg)
	}
	return map[string]interface{}{"name": "orders/" + accountID}, nil
}

func (f *fakeUpdater) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type errString string

func (e errString) Error() string { return string(e) }

func dispatchableMutation(orderID string) OrderMutation {
	return OrderMutation{
		OrderID: orderID,
		Items:   []commerce.UpdateItem{{SkuID: "sku-1", Action: "UPDATE"}},
	}
}

func waitCompleted(t *testing.T, p *Processor, jobID string) Job {
	t.Helper()
	var job Job
	require.Eventually(t, func() bool {
		var ok bool
		job, ok = p.GetJob(jobID)
		return ok && job.Status == StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)
	return job
}

func TestCreateJobMixedOutcomes(t *testing.T) {
	updater := &fakeUpdater{failAccounts: map[string]string{"acct-3": "upstream rejected the update"}}
	p := NewProcessor(NewJobStore(), updater, 2, testLogger(t))

	jobID := p.CreateJob([]OrderMutation{
		dispatchableMutation("accounts/acct-1/customers/c1/orders/o1"),
		dispatchableMutation("accounts/acct-2/customers/c2/orders/o2"),
		dispatchableMutation("accounts/acct-3/customers/c3/orders/o3"),
	})
	require.NotEmpty(t, jobID)

	job := waitCompleted(t, p, jobID)
	assert.Equal(t, JobStats{Total: 3, Succeeded: 2, Failed: 1}, job.Stats)
	assert.Len(t, job.Results, 2)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, "accounts/acct-3/customers/c3/orders/o3", job.Errors[0].OrderID)
	assert.Equal(t, "upstream rejected the update", job.Errors[0].Error)
	assert.False(t, job.Completed.IsZero())
}

func TestCreateJobRejectsOrdersWithoutValidItems(t *testing.T) {
	updater := &fakeUpdater{}
	p := NewProcessor(NewJobStore(), updater, 1, testLogger(t))

	jobID := p.CreateJob([]OrderMutation{
		dispatchableMutation("accounts/a/customers/c/orders/o1"),
		{OrderID: "accounts/a/customers/c/orders/o2", ItemErrors: []ItemError{{ItemName: "item-1"}}},
		{OrderID: "accounts/a/customers/c/orders/o3"},
	})

	job := waitCompleted(t, p, jobID)
	assert.Equal(t, 1, job.Stats.Total)
	require.Len(t, job.Invalid, 2)
	assert.Equal(t, "accounts/a/customers/c/orders/o2", job.Invalid[0].OrderID)
	require.Len(t, job.Invalid[0].Errors, 1)
	assert.Equal(t, 1, updater.callCount())
}

func TestProcessOrderMalformedID(t *testing.T) {
	updater := &fakeUpdater{}
	p := NewProcessor(NewJobStore(), updater, 1, testLogger(t))

	jobID := p.CreateJob([]OrderMutation{
		dispatchableMutation("accounts/123/customers/456"),
	})

	job := waitCompleted(t, p, jobID)
	assert.Equal(t, JobStats{Total: 1, Succeeded: 0, Failed: 1}, job.Stats)
	require.Len(t, job.Errors, 1)
	assert.Equal(t, "invalid order id format", job.Errors[0].Error)
	assert.Zero(t, updater.callCount(), "malformed ids must not reach the upstream API")
}

func TestProcessOrderSplitsAccountAndCustomer(t *testing.T) {
	updater := &fakeUpdater{}
	p := NewProcessor(NewJobStore(), updater, 1, testLogger(t))

	jobID := p.CreateJob([]OrderMutation{
		dispatchableMutation("accounts/123/customers/456/orders/789"),
	})
	waitCompleted(t, p, jobID)

	require.Len(t, updater.calls, 1)
	assert.Equal(t, "123", updater.calls[0].accountID)
	assert.Equal(t, "456", updater.calls[0].customerID)
}

func TestDispatchEmptyJobCompletes(t *testing.T) {
	p := NewProcessor(NewJobStore(), &fakeUpdater{}, 3, testLogger(t))

	jobID := p.CreateJob(nil)
	job := waitCompleted(t, p, jobID)
	assert.Equal(t, JobStats{}, job.Stats)
	assert.Empty(t, job.Results)
	assert.Empty(t, job.Errors)
}

func TestJobStoreSnapshotIsolation(t *testing.T) {
	store := NewJobStore()
	id := store.Create(&Job{Status: StatusProcessing, Results: []OrderResult{}})

	snap, ok := store.Get(id)
	require.True(t, ok)
	snap.Results = append(snap.Results, OrderResult{OrderID: "x"})
	snap.Stats.Succeeded = 99

	fresh, _ := store.Get(id)
	assert.Empty(t, fresh.Results)
	assert.Zero(t, fresh.Stats.Succeeded)
}

func TestJobStoreUnknownID(t *testing.T) {
	store := NewJobStore()
	_, ok := store.Get("missing")
	assert.False(t, ok)
	assert.False(t, store.Update("missing", func(*Job) {}))
}
