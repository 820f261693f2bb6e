// SPDX-License-Identifier: Apache-2.0

package dispatcher

import "fmt"

func validateBufferSize() Option {
	return optionFunc(func(d *Dispatcher) error {
		if d.bufferSize <= 0 {
			return fmt.Errorf("%w: non-positive bufferSize", ErrMisconfigured)
		}
		return nil
	})
}

func validatePrefetchInterval() Option {
	return optionFunc(func(d *Dispatcher) error {
		if d.prefetchInterval <= 0 {
			return fmt.Errorf("%w: non-positive prefetchInterval", ErrMisconfigured)
		}
		return nil
	})
}

func validateMaxCandidatesToEvaluate() Option {
	return optionFunc(func(d *Dispatcher) error {
		if d.maxCandidatesToEvaluate <= 0 {
			return fmt.Errorf("%w: non-positive maxCandidatesToEvaluate", ErrMisconfigured)
		}
		return nil
	})
}

func validateMinScoreThreshold() Option {
	return optionFunc(func(d *Dispatcher) error {
		if d.minScoreThreshold < 0 {
			return fmt.Errorf("%w: negative minScoreThreshold", ErrMisconfigured)
		}
		return nil
	})
}

func validateRetryPolicy() Option {
	return optionFunc(func(d *Dispatcher) error {
		if d.retryPolicyFactory == nil {
			return fmt.Errorf("%w: nil retry policy", ErrMisconfigured)
		}
		return nil
	})
}
