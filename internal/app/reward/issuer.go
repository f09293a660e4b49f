// Package reward implements the idempotent reward issuer — the single write
// path through which currency deltas reach a user.
//
// Every issue runs as one SQLite transaction holding three parts: the
// caller's conditional state update, the ledger fact (UNIQUE dedupe key), and
// the additive balance delta. Either all three commit or none do, so a
// balance can never change without its audit fact. A grant whose dedupe key
// already exists in the ledger is skipped without touching the balance.
package reward

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/metrics"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

// Issuer applies reward grants exactly once per dedupe key.
type Issuer struct {
	db *sqlite.DB
}

// NewIssuer creates a reward issuer.
func NewIssuer(db *sqlite.DB) *Issuer {
	return &Issuer{db: db}
}

// StateWrite is the caller's conditional persistence step, run first inside
// the issue transaction. Returning false signals a version conflict: the
// transaction rolls back and nothing — state, ledger, balance — commits.
type StateWrite func(tx *sql.Tx) (applied bool, err error)

// Result reports what an issue transaction committed.
type Result struct {
	Applied []domain.RewardGrant // grants that passed dedupe and hit the balance
	Balance domain.Balance       // primary user's balance after commit
}

// Earned sums the applied deltas for one currency.
func (r Result) Earned(kind domain.RewardKind) int64 {
	var total int64
	for _, g := range r.Applied {
		if g.Kind == kind {
			total += g.Amount
		}
	}
	return total
}

// Apply runs write (may be nil), then records each grant and its balance
// delta, as a single transaction. Grants may target users other than userID
// (referral credits the referrer); the returned balance is always userID's.
// A false StateWrite surfaces as domain.ErrConflict.
func (i *Issuer) Apply(userID string, grants []domain.RewardGrant, write StateWrite) (Result, error) {
	var res Result
	err := i.db.Transact(func(tx *sql.Tx) error {
		if write != nil {
			ok, err := write(tx)
			if err != nil {
				return err
			}
			if !ok {
				metrics.VersionConflicts.Inc()
				return domain.ErrConflict
			}
		}

		for _, g := range grants {
			inserted, err := i.db.InsertGrant(tx, g)
			if err != nil {
				return fmt.Errorf("append grant %s: %w", g.DedupeKey, err)
			}
			if !inserted {
				// Same trigger instance already credited — second line of
				// defense behind the conditional state write.
				metrics.RewardDedupeHits.Inc()
				continue
			}
			if g.Amount != 0 {
				if err := i.db.AddCurrency(tx, g.UserID, g.Kind, g.Amount); err != nil {
					return fmt.Errorf("credit %s to %s: %w", g.Kind, g.UserID, err)
				}
			}
			metrics.RewardsIssued.WithLabelValues(string(g.Kind), g.Source).Inc()
			res.Applied = append(res.Applied, g)
		}

		balance, err := i.db.Balance(tx, userID)
		if err != nil {
			return err
		}
		res.Balance = balance
		return nil
	})
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// Issue applies a single (kind, amount) delta exactly once for dedupeKey.
// Returns applied=false with the current balance when the grant was already
// recorded.
func (i *Issuer) Issue(userID, dedupeKey string, kind domain.RewardKind, amount int64, source string) (bool, domain.Balance, error) {
	res, err := i.Apply(userID, []domain.RewardGrant{NewGrant(userID, kind, amount, source, dedupeKey)}, nil)
	if err != nil {
		return false, domain.Balance{}, err
	}
	return len(res.Applied) > 0, res.Balance, nil
}

// IssuePurchase credits a purchased pack. With a payment ID the dedupe key is
// exact; without one, a grant for the same (user, source) inside the trailing
// window is treated as a retry of the same purchase and returned instead of
// re-credited.
func (i *Issuer) IssuePurchase(userID, pack string, kind domain.RewardKind, amount int64,
	paymentID string, window time.Duration, now time.Time) (bool, domain.Balance, error) {

	source := domain.SourcePurchase + ":" + pack
	if paymentID != "" {
		key := fmt.Sprintf("%s:%s:%s", userID, domain.SourcePurchase, paymentID)
		return i.Issue(userID, key, kind, amount, source)
	}

	// No idempotency key from the gateway — fall back to the time-window
	// heuristic.
	prior, err := i.db.RecentGrant(i.db.Q(), userID, source, now, window)
	if err != nil {
		return false, domain.Balance{}, err
	}
	if prior != nil {
		balance, err := i.db.Balance(i.db.Q(), userID)
		return false, balance, err
	}
	return i.Issue(userID, uuid.NewString(), kind, amount, source)
}

// NewGrant builds a ledger fact for the issuer.
func NewGrant(userID string, kind domain.RewardKind, amount int64, source, dedupeKey string) domain.RewardGrant {
	return domain.RewardGrant{
		ID:        uuid.NewString(),
		UserID:    userID,
		Kind:      kind,
		Amount:    amount,
		Source:    source,
		DedupeKey: dedupeKey,
		CreatedAt: time.Now(),
	}
}
