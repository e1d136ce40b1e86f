package sample

import (
	"fmt"

	"github.com/itohio/emgkb/pkg/config"
)

// Filters holds one exponential moving average per channel. The average is
// updated on every value regardless of policy; the policy only selects what
// is reported.
type Filters struct {
	policy string
	alpha  float64
	ema    []float64
}

// NewFilters creates per-channel filter state. The averages start at 0.
func NewFilters(policy string, alpha float64, channels int) (*Filters, error) {
	if policy != config.PolicyRaw && policy != config.PolicyEMA {
		return nil, fmt.Errorf("unknown filter policy %q", policy)
	}
	if !(alpha > 0 && alpha <= 1) {
		return nil, fmt.Errorf("filter alpha %v outside (0, 1]", alpha)
	}
	if channels < 1 {
		return nil, fmt.Errorf("filter needs at least one channel, got %d", channels)
	}
	return &Filters{
		policy: policy,
		alpha:  alpha,
		ema:    make([]float64, channels),
	}, nil
}

// Apply feeds v into the channel's average and returns the filtered value:
// v minus the updated average for the ema policy, v itself for raw.
func (f *Filters) Apply(channel int, v float64) float64 {
	s := f.alpha*v + (1-f.alpha)*f.ema[channel]
	f.ema[channel] = s

	if f.policy == config.PolicyRaw {
		return v
	}
	return v - s
}

// Average returns the channel's current moving average.
func (f *Filters) Average(channel int) float64 {
	return f.ema[channel]
}

// Policy returns the configured policy.
func (f *Filters) Policy() string {
	return f.policy
}
