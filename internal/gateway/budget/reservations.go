package budget

import "sync"

// Reservations closes the check-then-write race: the execute path reserves
// the estimated cost before any provider call is made, and the gate counts
// in-flight reservations as spend. Without this, concurrent callers from
// one subscriber could each pass the check against a stale spent-so-far
// snapshot and collectively overspend the daily limit. With it, overspend
// is bounded by the estimate error of admitted calls rather than the
// number of concurrent callers.
type Reservations struct {
	mu       sync.Mutex
	inflight map[string]float64
}

func NewReservations() *Reservations {
	return &Reservations{inflight: make(map[string]float64)}
}

// Reservation is one held estimate. Release is idempotent.
type Reservation struct {
	parent       *Reservations
	subscriberID string
	amount       float64
	once         sync.Once
}

// Reserve holds amount against the subscriber until released.
func (r *Reservations) Reserve(subscriberID string, amount float64) *Reservation {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.inflight[subscriberID] += amount
	return &Reservation{parent: r, subscriberID: subscriberID, amount: amount}
}

// TryReserve admits and holds amount in one step under the mutex: the
// limit comparisons and the increment cannot interleave with another
// caller's, so two requests that read the same ledger snapshot cannot
// both be admitted into the last slot of headroom. spentToday and
// spentMonth are the ledger totals only; in-flight amounts are added
// here. On denial the returned reservation is nil and the reason names
// the limit that was hit (daily checked first). The pre-existing
// in-flight total is returned either way so the caller can report
// spend consistently.
func (r *Reservations) TryReserve(subscriberID string, amount, spentToday, dailyLimit, spentMonth, monthlyLimit float64) (*Reservation, float64, Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	inflight := r.inflight[subscriberID]
	if spentToday+inflight+amount > dailyLimit {
		return nil, inflight, ReasonDailyBudgetExceeded
	}
	if spentMonth+inflight+amount > monthlyLimit {
		return nil, inflight, ReasonMonthlyBudgetExceeded
	}
	r.inflight[subscriberID] += amount
	return &Reservation{parent: r, subscriberID: subscriberID, amount: amount}, inflight, ""
}

// InFlight returns the total reserved amount for a subscriber.
func (r *Reservations) InFlight(subscriberID string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inflight[subscriberID]
}

// Release returns the reserved amount. Called after the ledger write on
// success, or on any failure path.
func (res *Reservation) Release() {
	res.once.Do(func() {
		r := res.parent
		r.mu.Lock()
		defer r.mu.Unlock()
		r.inflight[res.subscriberID] -= res.amount
		if r.inflight[res.subscriberID] <= 0 {
			delete(r.inflight, res.subscriberID)
		}
	})
}
