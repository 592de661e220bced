package sim

import (
	"fmt"
	"time"
)

// UserCleanupError records one user whose cleanup write failed. The run
// continues past it.
type UserCleanupError struct {
	Email string `json:"email"`
	Err   string `json:"error"`
}

// CleanupResult is the outcome of one cleanup pass, identical for manual and
// scheduled triggers.
type CleanupResult struct {
	RemovedCount int                `json:"removedCount"`
	Timestamp    time.Time          `json:"timestamp"`
	Failures     []UserCleanupError `json:"failures,omitempty"`
}

// stale is the purge predicate: unexecuted limit orders.
func stale(o Order) bool {
	return o.Kind == KindLimit && o.Status == StatusPending
}

// keepFresh filters out stale orders, preserving order. Returns the kept
// slice and how many were dropped.
func keepFresh(orders []Order) ([]Order, int) {
	kept := orders[:0:0]
	for _, o := range orders {
		if !stale(o) {
			kept = append(kept, o)
		}
	}
	if kept == nil {
		kept = []Order{}
	}
	return kept, len(orders) - len(kept)
}

// RunCleanup scans every user document and removes pending limit orders from
// both active sides. The trash is never read or modified. Users are processed
// independently: a failure on one is recorded in the result and the scan
// moves on. The returned error is non-nil only when the user listing itself
// fails - that is the one unrecoverable case.
func (m *Manager) RunCleanup() (CleanupResult, error) {
	res := CleanupResult{Timestamp: time.Now().UTC()}

	emails, err := m.store.UserEmails()
	if err != nil {
		return res, fmt.Errorf("list users: %w", err)
	}

	for _, email := range emails {
		removed, err := m.cleanupUser(email)
		if err != nil {
			m.log.Errorw("cleanup_user_failed", "email", email, "err", err)
			res.Failures = append(res.Failures, UserCleanupError{
				Email: email,
				Err:   err.Error(),
			})
			continue
		}
		res.RemovedCount += removed
	}

	m.log.Infow("cleanup_done",
		"users", len(emails),
		"removed", res.RemovedCount,
		"failures", len(res.Failures))
	return res, nil
}

// cleanupUser filters one user's active sides under the user's lock. Skips
// the write entirely when nothing matched.
func (m *Manager) cleanupUser(email string) (int, error) {
	m.locks.Lock(email)
	defer m.locks.Unlock(email)

	uo, err := m.store.LoadOrders(email)
	if err != nil {
		return 0, fmt.Errorf("load: %w", err)
	}
	if uo == nil {
		return 0, nil
	}
	uo.Normalize()

	buy, removedBuy := keepFresh(uo.BuyOrders)
	sell, removedSell := keepFresh(uo.SellOrders)
	removed := removedBuy + removedSell
	if removed == 0 {
		return 0, nil
	}

	uo.BuyOrders = buy
	uo.SellOrders = sell

	if err := m.store.SaveOrders(email, uo); err != nil {
		return 0, fmt.Errorf("save: %w", err)
	}
	return removed, nil
}
