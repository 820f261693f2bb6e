// SPDX-License-Identifier: Apache-2.0

package ratelimiter

// Static is a fixed-answer RateLimiter test double: every call to
// CanProcess returns Decision unmodified, and GetMetrics always returns
// Metrics; both return Err instead when it is set. It exists for this module's own tests and for the
// cmd/dispatcherd demo; it is not a production rate limiter.
type Static struct {
	Decision Decision
	Metrics  Metrics
	Err      error
}

var _ RateLimiter = (*Static)(nil)

// AlwaysAllow returns a Static limiter that admits every candidate and
// reports the given RPM/TPM budgets as fully available.
func AlwaysAllow(rpmLimit, tpmLimit int) *Static {
	return &Static{
		Decision: Decision{
			Allowed: true,
			AvailableTokens: AvailableTokens{
				RPM: rpmLimit,
				TPM: tpmLimit,
			},
		},
		Metrics: Metrics{
			RPM:        AxisMetrics{Used: 0, Available: rpmLimit, Limit: rpmLimit},
			TPM:        AxisMetrics{Used: 0, Available: tpmLimit, Limit: tpmLimit},
			Efficiency: 1.0,
		},
	}
}

// DenyAll returns a Static limiter that refuses every candidate.
func DenyAll(reason DenyReason) *Static {
	return &Static{
		Decision: Decision{
			Allowed: false,
			Reason:  reason,
		},
	}
}

func (s *Static) CanProcess(estimatedTokens int) (Decision, error) {
	if s.Err != nil {
		return Decision{}, s.Err
	}
	return s.Decision, nil
}

func (s *Static) GetMetrics() (Metrics, error) {
	if s.Err != nil {
		return Metrics{}, s.Err
	}
	return s.Metrics, nil
}

// TPMCapped is a RateLimiter test double that admits a candidate only if
// its estimated token cost fits within a fixed available-TPM budget. RPM
// is treated as unconstrained. It is used to exercise the
// efficiency/tokenFit scoring paths without a real limiter.
type TPMCapped struct {
	AvailableTPM int
	AvailableRPM int
}

var _ RateLimiter = (*TPMCapped)(nil)

func (t *TPMCapped) CanProcess(estimatedTokens int) (Decision, error) {
	if estimatedTokens > t.AvailableTPM {
		return Decision{
			Allowed: false,
			Reason:  DenyTPM,
			AvailableTokens: AvailableTokens{
				RPM: t.AvailableRPM,
				TPM: t.AvailableTPM,
			},
		}, nil
	}

	return Decision{
		Allowed: true,
		AvailableTokens: AvailableTokens{
			RPM: t.AvailableRPM,
			TPM: t.AvailableTPM,
		},
	}, nil
}

func (t *TPMCapped) GetMetrics() (Metrics, error) {
	return Metrics{
		RPM:        AxisMetrics{Available: t.AvailableRPM, Limit: t.AvailableRPM},
		TPM:        AxisMetrics{Available: t.AvailableTPM, Limit: t.AvailableTPM},
		Efficiency: 1.0,
	}, nil
}
