package risk

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/robertofernandezmartinez/smartport-supply-bridge/internal/contracts"
)

const day = 24 * time.Hour

// Policy is the scaling policy turning a docking delay into a downstream
// disruption estimate. Tune it through config; the correlator never sees it.
type Policy struct {
	Threshold      contracts.RiskLabel
	ScoreThreshold float64
	MinScaled      time.Duration
	MaxScaled      time.Duration
	FloorMinutes   int
	CeilingMinutes int
	Buffer         time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Threshold:      contracts.RiskCritical,
		ScoreThreshold: 75,
		MinScaled:      7 * day,
		MaxScaled:      14 * day,
		FloorMinutes:   180,
		CeilingMinutes: 1440,
		Buffer:         5 * day,
	}
}

func (p Policy) Validate() error {
	switch {
	case p.Threshold.Rank() == 0:
		return fmt.Errorf("risk policy: unknown threshold label %q", p.Threshold)
	case p.MinScaled <= 0:
		return errors.New("risk policy: min scaled delay must be > 0")
	case p.MaxScaled < p.MinScaled:
		return errors.New("risk policy: max scaled delay below min")
	case p.FloorMinutes < 0:
		return errors.New("risk policy: floor minutes must be >= 0")
	case p.CeilingMinutes <= p.FloorMinutes:
		return errors.New("risk policy: ceiling minutes must exceed floor minutes")
	case p.Buffer < 0:
		return errors.New("risk policy: buffer must be >= 0")
	}
	return nil
}

// Correlatable reports whether an event crosses the threshold. Anything below
// is handled operationally at the port and never reaches correlation. A raw
// score above ScoreThreshold counts as critical whatever the label says.
func (p Policy) Correlatable(e contracts.MaritimeEvent) bool {
	if e.RiskLabel.AtLeast(p.Threshold) {
		return true
	}
	return p.ScoreThreshold > 0 && e.RiskScore > p.ScoreThreshold
}

// ScaledDelay maps docking-delay minutes onto the [MinScaled, MaxScaled] band,
// linear between FloorMinutes and CeilingMinutes and rounded to whole days.
func (p Policy) ScaledDelay(delayMinutes int) time.Duration {
	span := float64(p.CeilingMinutes - p.FloorMinutes)
	ratio := clamp(float64(delayMinutes-p.FloorMinutes)/span, 0, 1)

	minDays := p.MinScaled.Hours() / 24
	maxDays := p.MaxScaled.Hours() / 24
	days := math.Round(minDays + ratio*(maxDays-minDays))
	days = clamp(days, math.Ceil(minDays), math.Floor(maxDays))

	return time.Duration(days) * day
}

// Disruption is the normalizer output for one event, before it is fanned out
// per category.
type Disruption struct {
	Start       time.Time
	End         time.Time
	ScaledDelay time.Duration
	Buffer      time.Duration
}

func (d Disruption) Window(category contracts.Category, e contracts.MaritimeEvent) contracts.DisruptionWindow {
	return contracts.DisruptionWindow{
		Category:    category,
		VesselID:    e.VesselID,
		EventID:     e.ID,
		Start:       d.Start,
		End:         d.End,
		ScaledDelay: d.ScaledDelay,
		Buffer:      d.Buffer,
	}
}

type Normalizer struct {
	policy Policy
}

func NewNormalizer(policy Policy) (*Normalizer, error) {
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	return &Normalizer{policy: policy}, nil
}

func (n *Normalizer) Policy() Policy {
	return n.policy
}

// Normalize returns false for events below the threshold; that is a policy
// no-op, not an error.
func (n *Normalizer) Normalize(e contracts.MaritimeEvent) (Disruption, bool) {
	if !n.policy.Correlatable(e) {
		return Disruption{}, false
	}

	scaled := n.policy.ScaledDelay(e.DelayMinutes)
	start := e.ObservedAt.UTC()
	return Disruption{
		Start:       start,
		End:         start.Add(scaled + n.policy.Buffer),
		ScaledDelay: scaled,
		Buffer:      n.policy.Buffer,
	}, true
}

func clamp(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}
