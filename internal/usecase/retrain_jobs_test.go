package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRetrainFixture(t *testing.T, ledger *fakeLedger, store *fakeModelStore) *RetrainJob {
	t.Helper()
	f, _, _ := newForecasterFixture(t, ledger, store)
	return NewRetrainJob(f, testLogger(t))
}

func TestRetrainJobIdentity(t *testing.T) {
	j := newRetrainFixture(t, &fakeLedger{}, newFakeModelStore())
	assert.Equal(t, "forecast-retrain", j.Name())
	assert.Equal(t, RetrainMessageType, j.Type())
}

func TestRetrainJobHandlesRawPayload(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	j := newRetrainFixture(t, ledger, store)

	raw, err := json.Marshal(RetrainPayload{OrgID: "org-1", MonthsBack: 24})
	require.NoError(t, err)

	require.NoError(t, j.Handle(context.Background(), json.RawMessage(raw)))
	assert.NotNil(t, store.saved["org-1"])
}

func TestRetrainJobHandlesDecodedMapPayload(t *testing.T) {
	// Queue consumers decode envelopes into generic maps before dispatch.
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	j := newRetrainFixture(t, ledger, store)

	payload := map[string]interface{}{"org_id": "org-2", "months_back": float64(24)}
	require.NoError(t, j.Handle(context.Background(), payload))
	assert.NotNil(t, store.saved["org-2"])
}

func TestRetrainJobSkipsWhenLockHeld(t *testing.T) {
	ledger := &fakeLedger{monthly: steadyMonths(24, 50000, 40000), txnCount: 500}
	store := newFakeModelStore()
	j := newRetrainFixture(t, ledger, store)

	locked, err := store.TryLock(context.Background(), "org-1", time.Minute)
	require.NoError(t, err)
	require.True(t, locked)

	// A concurrent trainer is not a retryable failure.
	assert.NoError(t, j.Handle(context.Background(), RetrainPayload{OrgID: "org-1"}))
	assert.Empty(t, store.saved)
}

func TestRetrainJobRejectsUnusablePayload(t *testing.T) {
	j := newRetrainFixture(t, &fakeLedger{}, newFakeModelStore())
	assert.Error(t, j.Handle(context.Background(), 42))
}

func TestRetrainSchedulerEnqueuesActiveOrgs(t *testing.T) {
	ledger := &fakeLedger{activeOrgs: []string{"org-a", "org-b"}}
	producer := &fakeQueue{}
	s := NewRetrainScheduler(ledger, producer, testLogger(t), time.Hour, 48*time.Hour, 24)

	s.enqueueAll(context.Background())

	require.Len(t, producer.types, 2)
	assert.Equal(t, RetrainMessageType, producer.types[0])
	assert.Equal(t, RetrainPayload{OrgID: "org-a", MonthsBack: 24}, producer.payloads[0])
	assert.Equal(t, RetrainPayload{OrgID: "org-b", MonthsBack: 24}, producer.payloads[1])
}

func TestRetrainSchedulerListFailure(t *testing.T) {
	ledger := &fakeLedger{activeErr: errors.New("clickhouse down")}
	producer := &fakeQueue{}
	s := NewRetrainScheduler(ledger, producer, testLogger(t), time.Hour, 48*time.Hour, 24)

	s.enqueueAll(context.Background())
	assert.Empty(t, producer.types)
}

func TestRetrainSchedulerStopIsIdempotent(t *testing.T) {
	s := NewRetrainScheduler(&fakeLedger{}, &fakeQueue{}, testLogger(t), time.Hour, time.Hour, 24)

	done := make(chan struct{})
	go func() {
		s.Start(context.Background())
		close(done)
	}()

	// Shutdown paths overlap in practice (signal handler plus defer), so
	// concurrent Stops must all be safe.
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Stop()
		}()
	}
	wg.Wait()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}
