package budget

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReserveAndRelease(t *testing.T) {
	r := NewReservations()

	res1 := r.Reserve("sub-1", 2.5)
	res2 := r.Reserve("sub-1", 1.0)
	r.Reserve("sub-2", 4.0)

	assert.InDelta(t, 3.5, r.InFlight("sub-1"), 1e-9)
	assert.InDelta(t, 4.0, r.InFlight("sub-2"), 1e-9)

	res1.Release()
	assert.InDelta(t, 1.0, r.InFlight("sub-1"), 1e-9)

	// Release is idempotent.
	res1.Release()
	assert.InDelta(t, 1.0, r.InFlight("sub-1"), 1e-9)

	res2.Release()
	assert.Zero(t, r.InFlight("sub-1"))
}

func TestTryReserveAtomicAdmission(t *testing.T) {
	r := NewReservations()

	// $6 into a $10 daily limit with a clean ledger: admitted and held.
	res, inflight, reason := r.TryReserve("sub-1", 6.0, 0, 10, 0, 100)
	assert.NotNil(t, res)
	assert.Zero(t, inflight)
	assert.Empty(t, reason)
	assert.InDelta(t, 6.0, r.InFlight("sub-1"), 1e-9)

	// A second $6 against the same ledger totals must see the held $6
	// and be refused without changing the in-flight amount.
	res2, inflight2, reason2 := r.TryReserve("sub-1", 6.0, 0, 10, 0, 100)
	assert.Nil(t, res2)
	assert.InDelta(t, 6.0, inflight2, 1e-9)
	assert.Equal(t, ReasonDailyBudgetExceeded, reason2)
	assert.InDelta(t, 6.0, r.InFlight("sub-1"), 1e-9)

	res.Release()
	res3, _, reason3 := r.TryReserve("sub-1", 6.0, 0, 10, 0, 100)
	assert.NotNil(t, res3)
	assert.Empty(t, reason3)
}

func TestTryReserveMonthlyCountsHeld(t *testing.T) {
	r := NewReservations()

	res, _, _ := r.TryReserve("sub-1", 6.0, 0, 1000, 0, 10)
	assert.NotNil(t, res)

	// Daily headroom is ample; the held $6 must still count against the
	// monthly limit.
	res2, _, reason := r.TryReserve("sub-1", 6.0, 0, 1000, 0, 10)
	assert.Nil(t, res2)
	assert.Equal(t, ReasonMonthlyBudgetExceeded, reason)
}

func TestReservationsConcurrent(t *testing.T) {
	r := NewReservations()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res := r.Reserve("sub-1", 1.0)
			res.Release()
		}()
	}
	wg.Wait()

	assert.Zero(t, r.InFlight("sub-1"))
}
