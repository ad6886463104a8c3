package quality

import "testing"

func TestControllerStepsDownToFloor(t *testing.T) {
	var applied []int
	c := NewController(ControllerConfig{
		Initial: 12,
		Apply:   func(sf int) { applied = append(applied, sf) },
	})

	// Ten strong readings: one step per reading until the floor, then no
	// further change.
	for i := 0; i < 10; i++ {
		c.Adapt(-60)
	}

	if got := c.SpreadingFactor(); got != MinSpreadingFactor {
		t.Errorf("SpreadingFactor() = %d, want %d", got, MinSpreadingFactor)
	}
	want := []int{11, 10, 9, 8, 7}
	if len(applied) != len(want) {
		t.Fatalf("Apply called %d times, want %d (%v)", len(applied), len(want), applied)
	}
	for i := range want {
		if applied[i] != want[i] {
			t.Errorf("Apply call %d = %d, want %d", i, applied[i], want[i])
		}
	}
}

func TestControllerStepsUpToCeiling(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 10})

	for i := 0; i < 10; i++ {
		c.Adapt(-125)
	}

	if got := c.SpreadingFactor(); got != MaxSpreadingFactor {
		t.Errorf("SpreadingFactor() = %d, want %d", got, MaxSpreadingFactor)
	}
}

func TestControllerDeadZone(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 9})

	for _, rssi := range []int16{-80, -95, -110} {
		c.Adapt(rssi)
		if got := c.SpreadingFactor(); got != 9 {
			t.Errorf("SpreadingFactor() after Adapt(%d) = %d, want 9", rssi, got)
		}
	}
}

func TestControllerOverrideRestore(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 9})
	c.Adapt(-60) // adapts to 8

	c.Override(12)
	if got := c.SpreadingFactor(); got != 12 {
		t.Fatalf("SpreadingFactor() during override = %d, want 12", got)
	}
	if !c.Overridden() {
		t.Error("Overridden() = false, want true")
	}

	// Adaptation is suspended while overridden.
	c.Adapt(-60)
	if got := c.SpreadingFactor(); got != 12 {
		t.Errorf("SpreadingFactor() after Adapt during override = %d, want 12", got)
	}

	// Restore returns to the adapted value, not the configured initial.
	c.Restore()
	if got := c.SpreadingFactor(); got != 8 {
		t.Errorf("SpreadingFactor() after Restore = %d, want 8", got)
	}
	if c.Overridden() {
		t.Error("Overridden() = true after Restore, want false")
	}
}

func TestControllerRestoreWithoutOverride(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 10})
	c.Restore()
	if got := c.SpreadingFactor(); got != 10 {
		t.Errorf("SpreadingFactor() = %d, want 10", got)
	}
}

func TestControllerDisabled(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 9, Disabled: true})

	c.Adapt(-60)
	c.Adapt(-125)
	if got := c.SpreadingFactor(); got != 9 {
		t.Errorf("SpreadingFactor() = %d, want 9", got)
	}

	// Overrides work even with adaptation disabled.
	c.Override(12)
	if got := c.SpreadingFactor(); got != 12 {
		t.Errorf("SpreadingFactor() during override = %d, want 12", got)
	}
	c.Restore()
	if got := c.SpreadingFactor(); got != 9 {
		t.Errorf("SpreadingFactor() after Restore = %d, want 9", got)
	}
}

func TestControllerClamping(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 20})
	if got := c.SpreadingFactor(); got != MaxSpreadingFactor {
		t.Errorf("SpreadingFactor() = %d, want %d", got, MaxSpreadingFactor)
	}

	c.Override(3)
	if got := c.SpreadingFactor(); got != MinSpreadingFactor {
		t.Errorf("SpreadingFactor() after Override(3) = %d, want %d", got, MinSpreadingFactor)
	}
	c.Override(99)
	if got := c.SpreadingFactor(); got != MaxSpreadingFactor {
		t.Errorf("SpreadingFactor() after Override(99) = %d, want %d", got, MaxSpreadingFactor)
	}
}

func TestControllerNestedOverrideKeepsAdapted(t *testing.T) {
	c := NewController(ControllerConfig{Initial: 9})
	c.Adapt(-125) // adapts to 10

	c.Override(12)
	c.Override(7) // second override must not clobber the remembered value
	c.Restore()

	if got := c.SpreadingFactor(); got != 10 {
		t.Errorf("SpreadingFactor() after Restore = %d, want 10", got)
	}
}
