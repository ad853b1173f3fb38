package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"

	"github.com/abdulaziz27/xpresspos-inventory/internal/shared"
)

type fakeCogsProcessor struct {
	processed []int64
	err       error
}

func (p *fakeCogsProcessor) ProcessOrder(ctx context.Context, orderID int64) error {
	if p.err != nil {
		return p.err
	}
	p.processed = append(p.processed, orderID)
	return nil
}

type fakeReceiptProcessor struct {
	processed []int64
	err       error
}

func (p *fakeReceiptProcessor) ProcessReceivedPurchaseOrder(ctx context.Context, poID int64) error {
	if p.err != nil {
		return p.err
	}
	p.processed = append(p.processed, poID)
	return nil
}

type fakeInvalidator struct {
	calls int
}

func (i *fakeInvalidator) Invalidate(ctx context.Context) error {
	i.calls++
	return nil
}

type fakeIdemStore struct {
	keys     map[string]bool
	cleanups int
}

func newFakeIdemStore() *fakeIdemStore {
	return &fakeIdemStore{keys: make(map[string]bool)}
}

func (s *fakeIdemStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.keys[key] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[key] = true
	return nil
}

func (s *fakeIdemStore) Delete(ctx context.Context, key string) error {
	delete(s.keys, key)
	return nil
}

func (s *fakeIdemStore) Cleanup(ctx context.Context, olderThan time.Duration) error {
	s.cleanups++
	return nil
}

func TestNewOrderCogsTask(t *testing.T) {
	task, err := NewOrderCogsTask(42)
	require.NoError(t, err)
	require.Equal(t, TaskOrderCogs, task.Type())

	var payload OrderCogsPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, int64(42), payload.OrderID)

	_, err = NewOrderCogsTask(0)
	require.Error(t, err, "zero order id rejected up front")
}

func TestNewPurchaseReceiptTask(t *testing.T) {
	task, err := NewPurchaseReceiptTask(7)
	require.NoError(t, err)
	require.Equal(t, TaskPurchaseReceipt, task.Type())

	_, err = NewPurchaseReceiptTask(-1)
	require.Error(t, err)
}

func TestOrderCogsJobHandle(t *testing.T) {
	processor := &fakeCogsProcessor{}
	invalidator := &fakeInvalidator{}
	job := NewOrderCogsJob(processor, invalidator, nil, nil)

	task, err := NewOrderCogsTask(42)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{42}, processor.processed)
	require.Equal(t, 1, invalidator.calls, "cache invalidated after a successful run")
}

func TestOrderCogsJobSkipsBadPayload(t *testing.T) {
	processor := &fakeCogsProcessor{}
	job := NewOrderCogsJob(processor, nil, nil, nil)

	bad := asynq.NewTask(TaskOrderCogs, []byte("{"))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)

	zero := asynq.NewTask(TaskOrderCogs, []byte(`{"order_id":0}`))
	require.ErrorIs(t, job.Handle(context.Background(), zero), asynq.SkipRetry)
	require.Empty(t, processor.processed)
}

func TestOrderCogsJobPropagatesServiceError(t *testing.T) {
	wantErr := errors.New("boom")
	processor := &fakeCogsProcessor{err: wantErr}
	invalidator := &fakeInvalidator{}
	job := NewOrderCogsJob(processor, invalidator, nil, nil)

	task, err := NewOrderCogsTask(42)
	require.NoError(t, err)
	require.ErrorIs(t, job.Handle(context.Background(), task), wantErr)
	require.Zero(t, invalidator.calls, "no invalidation on failure")
}

func TestPurchaseReceiptJobHandle(t *testing.T) {
	processor := &fakeReceiptProcessor{}
	invalidator := &fakeInvalidator{}
	job := NewPurchaseReceiptJob(processor, invalidator, nil, nil)

	task, err := NewPurchaseReceiptTask(7)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{7}, processor.processed)
	require.Equal(t, 1, invalidator.calls)

	bad := asynq.NewTask(TaskPurchaseReceipt, []byte(`{"po_id":0}`))
	require.ErrorIs(t, job.Handle(context.Background(), bad), asynq.SkipRetry)
}

func TestOrderCogsJobSuppressesDuplicateDelivery(t *testing.T) {
	processor := &fakeCogsProcessor{}
	idem := newFakeIdemStore()
	job := NewOrderCogsJob(processor, nil, idem, nil)

	task, err := NewOrderCogsTask(42)
	require.NoError(t, err)
	require.NoError(t, job.Handle(context.Background(), task))
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{42}, processor.processed, "second delivery short-circuited")
}

func TestOrderCogsJobReleasesKeyOnFailure(t *testing.T) {
	processor := &fakeCogsProcessor{err: errors.New("db down")}
	idem := newFakeIdemStore()
	job := NewOrderCogsJob(processor, nil, idem, nil)

	task, err := NewOrderCogsTask(42)
	require.NoError(t, err)
	require.Error(t, job.Handle(context.Background(), task))
	require.Empty(t, idem.keys, "failed runs leave no claim behind")

	processor.err = nil
	require.NoError(t, job.Handle(context.Background(), task))
	require.Equal(t, []int64{42}, processor.processed)
}

func TestIdempotencyCleanupJob(t *testing.T) {
	idem := newFakeIdemStore()
	job := NewIdempotencyCleanupJob(idem, nil)

	require.NoError(t, job.Handle(context.Background(), NewIdempotencyCleanupTask()))
	require.Equal(t, 1, idem.cleanups)
}

func TestNewValuationReportTask(t *testing.T) {
	at := time.Date(2026, 5, 1, 2, 0, 0, 0, time.UTC)
	task, err := NewValuationReportTask(at)
	require.NoError(t, err)
	require.Equal(t, TaskValuationReport, task.Type())

	var payload ValuationReportPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	require.Equal(t, at, payload.ScheduledFor)
}
