// Package referral implements referral-code resolution and reward crediting.
//
// A code is "{username}{4-digit-year}" (e.g. "dogmom2024"). Resolution strips
// the trailing four characters and looks the username up case-insensitively.
// Counting referred users, however, matches the stored code against
// ^{username}\d{4}$ case-SENSITIVELY. The asymmetry is inherited behavior and
// kept on purpose; see DESIGN.md.
package referral

import (
	"fmt"
	"regexp"

	"github.com/puzzlepup/puzzlepup/internal/app/engagement"
	"github.com/puzzlepup/puzzlepup/internal/app/reward"
	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/metrics"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

// codeSuffixLen is the trailing year portion of a referral code.
const codeSuffixLen = 4

// Service resolves referral codes and credits both sides of a referral.
type Service struct {
	db     *sqlite.DB
	issuer *reward.Issuer
}

// NewService creates a referral service.
func NewService(db *sqlite.DB, issuer *reward.Issuer) *Service {
	return &Service{db: db, issuer: issuer}
}

// ResolveCode maps a referral code to the referring user. Codes of length 4
// or less are malformed; a username portion that resolves to nobody rejects
// the code — signup fails loudly rather than dropping the referral.
func (s *Service) ResolveCode(code string) (*domain.User, error) {
	if len(code) <= codeSuffixLen {
		return nil, domain.ErrInvalidReferralCode
	}
	username := code[:len(code)-codeSuffixLen]

	referrer, err := s.db.FindUserByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("lookup referrer %q: %w", username, err)
	}
	if referrer == nil {
		return nil, domain.ErrInvalidReferralCode
	}
	return referrer, nil
}

// CreditSignup grants the referrer's bonus for a newly created user and
// appends a zero-amount fact documenting the referred side. The new user's
// own 25-hint baseline is seeded at account creation, not here — it is a
// one-time account event, not an issuer-gated trigger.
//
// Dedupe key (referrer, "referral", newUser) makes retried signup callbacks
// safe: the edge is credited at most once per referred user.
func (s *Service) CreditSignup(newUser *domain.User, referrer *domain.User) error {
	grants := []domain.RewardGrant{
		reward.NewGrant(referrer.ID, domain.RewardHints, engagement.ReferralBonusHints,
			domain.SourceReferral,
			fmt.Sprintf("%s:%s:%s", referrer.ID, domain.SourceReferral, newUser.ID)),
		// Audit-only record of the referred side's signup bonus.
		reward.NewGrant(newUser.ID, domain.RewardHints, 0,
			domain.SourceReferralSignup,
			fmt.Sprintf("%s:%s:%s", newUser.ID, domain.SourceReferralSignup, referrer.ID)),
	}

	res, err := s.issuer.Apply(referrer.ID, grants, nil)
	if err != nil {
		return fmt.Errorf("credit referral: %w", err)
	}
	if len(res.Applied) > 0 {
		metrics.Referrals.Inc()
	}
	return nil
}

// ReferredCount returns how many users signed up with a code belonging to
// this username: stored referred_by matching ^{username}\d{4}$, case
// sensitively. This pattern is the canonical definition of "referred count"
// for achievements and leaderboards.
func (s *Service) ReferredCount(username string) (int, error) {
	candidates, err := s.db.ReferredByCandidates(username)
	if err != nil {
		return 0, fmt.Errorf("list referral candidates: %w", err)
	}

	pattern, err := regexp.Compile(`^` + regexp.QuoteMeta(username) + `\d{4}$`)
	if err != nil {
		return 0, err
	}

	count := 0
	for _, code := range candidates {
		if pattern.MatchString(code) {
			count++
		}
	}
	return count, nil
}

// SignupBaseline returns the initial hint balance for a new account.
func SignupBaseline(referred bool) int64 {
	if referred {
		return engagement.ReferralBonusHints
	}
	return 0
}
