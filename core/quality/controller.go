package quality

// LoRa spreading-factor bounds. The factor never leaves this range.
const (
	MinSpreadingFactor = 7
	MaxSpreadingFactor = 12
)

// Adaptation thresholds in dBm.
const (
	DefaultHighRSSI = -80
	DefaultLowRSSI  = -110
)

// ControllerConfig configures adaptive spreading-factor control.
type ControllerConfig struct {
	// Initial is the spreading factor in use before any adaptation.
	// Zero selects MinSpreadingFactor; out-of-range values are clamped.
	Initial int

	// HighRSSI and LowRSSI are the adaptation thresholds in dBm. Signal
	// stronger than HighRSSI steps the factor down for throughput;
	// weaker than LowRSSI steps it up for robustness. Zero selects the
	// defaults.
	HighRSSI int16
	LowRSSI  int16

	// Disabled turns off automatic adaptation. Overrides still apply.
	Disabled bool

	// Apply is invoked with the new value whenever the active spreading
	// factor changes, including changes made by Override and Restore.
	Apply func(sf int)
}

// Controller steps the LoRa spreading factor one unit at a time in
// response to signal-strength readings. It tracks the adapted value
// separately from any temporary override so that Restore reinstates
// what adaptation had reached, not the configured initial value.
type Controller struct {
	cfg      ControllerConfig
	current  int
	adapted  int
	override bool
}

// NewController returns a controller starting at cfg.Initial.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.Initial == 0 {
		cfg.Initial = MinSpreadingFactor
	}
	cfg.Initial = clampSF(cfg.Initial)
	if cfg.HighRSSI == 0 {
		cfg.HighRSSI = DefaultHighRSSI
	}
	if cfg.LowRSSI == 0 {
		cfg.LowRSSI = DefaultLowRSSI
	}
	return &Controller{cfg: cfg, current: cfg.Initial, adapted: cfg.Initial}
}

// Adapt evaluates one signal-strength reading and moves the spreading
// factor by at most one step. Readings are ignored while an override is
// active or when adaptation is disabled.
func (c *Controller) Adapt(rssi int16) {
	if c.cfg.Disabled || c.override {
		return
	}
	switch {
	case rssi > c.cfg.HighRSSI && c.current > MinSpreadingFactor:
		c.set(c.current - 1)
	case rssi < c.cfg.LowRSSI && c.current < MaxSpreadingFactor:
		c.set(c.current + 1)
	}
	c.adapted = c.current
}

// Override forces a spreading factor and suspends adaptation until
// Restore. The value adaptation had reached is remembered.
func (c *Controller) Override(sf int) {
	if !c.override {
		c.adapted = c.current
	}
	c.override = true
	c.set(clampSF(sf))
}

// Restore ends an override and reinstates the last adapted spreading
// factor. It is a no-op when no override is active.
func (c *Controller) Restore() {
	if !c.override {
		return
	}
	c.override = false
	c.set(c.adapted)
}

// SpreadingFactor returns the active spreading factor.
func (c *Controller) SpreadingFactor() int { return c.current }

// Overridden reports whether an override is in effect.
func (c *Controller) Overridden() bool { return c.override }

func (c *Controller) set(sf int) {
	if sf == c.current {
		return
	}
	c.current = sf
	if c.cfg.Apply != nil {
		c.cfg.Apply(sf)
	}
}

func clampSF(sf int) int {
	if sf < MinSpreadingFactor {
		return MinSpreadingFactor
	}
	if sf > MaxSpreadingFactor {
		return MaxSpreadingFactor
	}
	return sf
}
