package booking

import (
	"fmt"
	"time"
)

type AllocationMode string

const (
	// ModeOccupancy allocates against the directory's occupancy snapshot.
	ModeOccupancy AllocationMode = "occupancy"
	// ModeAlternate skips the directory and cycles the preferred courts up to
	// the hard ceiling.
	ModeAlternate AllocationMode = "alternate"
)

const (
	DefaultPerCourtCapacity = 2
	DefaultCutoffMinute     = 45
	DefaultLongInterval     = 30 * time.Second
	DefaultShortInterval    = 50 * time.Millisecond
	DefaultAcquireAttempts  = 3
	DefaultRetryDelay       = 2 * time.Second
)

// RunConfig is the immutable input of one orchestration run. It is passed by
// value and never modified once a run has started.
type RunConfig struct {
	ResourceGroup    string
	DesiredCount     int
	Courts           []CourtID
	PerCourtCapacity int
	// MaxSlots is the hard ceiling on requests per run, independent of
	// occupancy. Zero means len(Courts)*PerCourtCapacity.
	MaxSlots     int
	Slot         SlotHour
	CutoffMinute int
	Location     *time.Location

	LongInterval    time.Duration
	ShortInterval   time.Duration
	SwitchThreshold time.Duration

	Mode            AllocationMode
	AcquireAttempts int
	RetryDelay      time.Duration
	TargetNames     []string
}

func (c RunConfig) WithDefaults() RunConfig {
	if c.PerCourtCapacity == 0 {
		c.PerCourtCapacity = DefaultPerCourtCapacity
	}
	if c.MaxSlots == 0 {
		c.MaxSlots = len(c.Courts) * c.PerCourtCapacity
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.LongInterval == 0 {
		c.LongInterval = DefaultLongInterval
	}
	if c.ShortInterval == 0 {
		c.ShortInterval = DefaultShortInterval
	}
	if c.SwitchThreshold == 0 {
		c.SwitchThreshold = Lead + 2*c.LongInterval
	}
	if c.Mode == "" {
		c.Mode = ModeOccupancy
	}
	if c.AcquireAttempts == 0 {
		c.AcquireAttempts = DefaultAcquireAttempts
	}
	if c.RetryDelay == 0 {
		c.RetryDelay = DefaultRetryDelay
	}
	// Copy slices so the caller cannot mutate a running config.
	c.Courts = append([]CourtID(nil), c.Courts...)
	c.TargetNames = append([]string(nil), c.TargetNames...)
	return c
}

func (c RunConfig) Validate() error {
	if c.DesiredCount < 0 {
		return fmt.Errorf("%w: desired count must be >= 0", ErrInvalidConfig)
	}
	if len(c.Courts) == 0 {
		return fmt.Errorf("%w: at least one court required", ErrInvalidConfig)
	}
	seen := make(map[CourtID]bool, len(c.Courts))
	for _, ct := range c.Courts {
		if ct <= 0 {
			return fmt.Errorf("%w: court ids must be positive (got %d)", ErrInvalidConfig, ct)
		}
		if seen[ct] {
			return fmt.Errorf("%w: court %d listed twice", ErrInvalidConfig, ct)
		}
		seen[ct] = true
	}
	if c.PerCourtCapacity < 1 {
		return fmt.Errorf("%w: per-court capacity must be >= 1", ErrInvalidConfig)
	}
	if c.MaxSlots < 0 {
		return fmt.Errorf("%w: max slots must be >= 0", ErrInvalidConfig)
	}
	if !c.Slot.Auto && (c.Slot.Hour < 0 || c.Slot.Hour > 23) {
		return fmt.Errorf("%w: %d", ErrSlotHourOutOfRange, c.Slot.Hour)
	}
	if c.CutoffMinute < 0 || c.CutoffMinute > 59 {
		return fmt.Errorf("%w: cutoff minute must be 0-59", ErrInvalidConfig)
	}
	if c.LongInterval <= 0 || c.ShortInterval <= 0 {
		return fmt.Errorf("%w: poll intervals must be positive", ErrInvalidConfig)
	}
	if c.ShortInterval > c.LongInterval {
		return fmt.Errorf("%w: short interval exceeds long interval", ErrInvalidConfig)
	}
	if c.SwitchThreshold < Lead {
		return fmt.Errorf("%w: switch threshold must be at least %s", ErrInvalidConfig, Lead)
	}
	switch c.Mode {
	case ModeOccupancy, ModeAlternate:
	default:
		return fmt.Errorf("%w: unknown allocation mode %q", ErrInvalidConfig, c.Mode)
	}
	if c.AcquireAttempts < 1 {
		return fmt.Errorf("%w: acquire attempts must be >= 1", ErrInvalidConfig)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("%w: retry delay must be >= 0", ErrInvalidConfig)
	}
	return nil
}

// Ceiling is the most requests a single run may make.
func (c RunConfig) Ceiling() int {
	if c.MaxSlots > 0 {
		return c.MaxSlots
	}
	return len(c.Courts) * c.PerCourtCapacity
}

// TargetName names the surface that serves request i.
func (c RunConfig) TargetName(i int) string {
	if i < len(c.TargetNames) && c.TargetNames[i] != "" {
		return c.TargetNames[i]
	}
	return fmt.Sprintf("target-%d", i+1)
}
