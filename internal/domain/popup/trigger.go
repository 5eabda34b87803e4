package popup

// TriggerType selects how a dormant popup decides to surface.
type TriggerType string

const (
	TriggerDelay  TriggerType = "delay"
	TriggerScroll TriggerType = "scroll"
)

// Legal Value bounds per trigger type.
const (
	MaxDelaySeconds  = 300
	MaxScrollPercent = 100
)

// TriggerConfig is attached to a popup and evaluated entirely client-side.
// Value is seconds for delay triggers (0-300) and a percentage for scroll
// triggers (0-100).
type TriggerConfig struct {
	Type  TriggerType `json:"type"`
	Value int         `json:"value"`
}

// Clamped forces Value into the legal range for the trigger type. Unknown
// types pass through untouched.
func (c TriggerConfig) Clamped() TriggerConfig {
	var max int
	switch c.Type {
	case TriggerDelay:
		max = MaxDelaySeconds
	case TriggerScroll:
		max = MaxScrollPercent
	default:
		return c
	}
	if c.Value < 0 {
		c.Value = 0
	}
	if c.Value > max {
		c.Value = max
	}
	return c
}
