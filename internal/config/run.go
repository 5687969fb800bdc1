package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/court-scheduler/internal/domain/booking"
)

const (
	DirectoryHTTP   = "http"
	DirectoryStatic = "static"

	ControllerHTTP   = "http"
	ControllerDryRun = "dryrun"
)

// RunFile is the parsed booking.yaml: the run record plus the adapters that
// serve it.
type RunFile struct {
	Run        booking.RunConfig
	Directory  DirectoryConfig
	Controller ControllerConfig
}

type DirectoryConfig struct {
	Kind     string
	URL      string
	Username string
	Password string
	Static   booking.Occupancy
	// CacheTTL applies to dashboard reads only.
	CacheTTL time.Duration
}

type ControllerConfig struct {
	Kind  string
	URL   string
	Token string
}

type slotHour booking.SlotHour

func (s *slotHour) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: slot_hour must be an hour or auto", n.Line)
	}
	h, err := booking.ParseSlotHour(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: %w", n.Line, err)
	}
	*s = slotHour(h)
	return nil
}

type runYAML struct {
	ResourceGroup    string    `yaml:"resource_group"`
	DesiredCount     int       `yaml:"desired_count"`
	Courts           []int     `yaml:"courts"`
	PerCourtCapacity int       `yaml:"per_court_capacity"`
	MaxSlots         int       `yaml:"max_slots"`
	SlotHour         *slotHour `yaml:"slot_hour"`
	CutoffMinute     *int      `yaml:"cutoff_minute"`
	Timezone         string    `yaml:"timezone"`
	AllocationMode   string    `yaml:"allocation_mode"`
	Targets          []string  `yaml:"targets"`

	Polling struct {
		Long            time.Duration `yaml:"long"`
		Short           time.Duration `yaml:"short"`
		SwitchThreshold time.Duration `yaml:"switch_threshold"`
	} `yaml:"polling"`

	Acquire struct {
		Attempts   int           `yaml:"attempts"`
		RetryDelay time.Duration `yaml:"retry_delay"`
	} `yaml:"acquire"`

	Directory struct {
		Kind     string        `yaml:"kind"`
		URL      string        `yaml:"url"`
		Username string        `yaml:"username"`
		Password string        `yaml:"password"`
		Static   map[int]int   `yaml:"static"`
		CacheTTL time.Duration `yaml:"cache_ttl"`
	} `yaml:"directory"`

	Controller struct {
		Kind  string `yaml:"kind"`
		URL   string `yaml:"url"`
		Token string `yaml:"token"`
	} `yaml:"controller"`
}

// LoadRun reads and validates a run file. DIRECTORY_PASSWORD and
// CONTROLLER_TOKEN in the environment override the file's secrets.
func LoadRun(path string) (RunFile, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return RunFile{}, fmt.Errorf("read run config: %w", err)
	}
	rf, err := ParseRun(b)
	if err != nil {
		return RunFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return rf, nil
}

func ParseRun(data []byte) (RunFile, error) {
	var y runYAML
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&y); err != nil && !errors.Is(err, io.EOF) {
		return RunFile{}, fmt.Errorf("%w: %w", booking.ErrInvalidConfig, err)
	}

	cfg := booking.RunConfig{
		ResourceGroup:    y.ResourceGroup,
		DesiredCount:     y.DesiredCount,
		PerCourtCapacity: y.PerCourtCapacity,
		MaxSlots:         y.MaxSlots,
		Slot:             booking.AutoSlot(),
		CutoffMinute:     booking.DefaultCutoffMinute,
		LongInterval:     y.Polling.Long,
		ShortInterval:    y.Polling.Short,
		SwitchThreshold:  y.Polling.SwitchThreshold,
		Mode:             booking.AllocationMode(y.AllocationMode),
		AcquireAttempts:  y.Acquire.Attempts,
		RetryDelay:       y.Acquire.RetryDelay,
		TargetNames:      y.Targets,
	}
	for _, c := range y.Courts {
		cfg.Courts = append(cfg.Courts, booking.CourtID(c))
	}
	if y.SlotHour != nil {
		cfg.Slot = booking.SlotHour(*y.SlotHour)
	}
	if y.CutoffMinute != nil {
		cfg.CutoffMinute = *y.CutoffMinute
	}
	if y.Timezone != "" {
		loc, err := time.LoadLocation(y.Timezone)
		if err != nil {
			return RunFile{}, fmt.Errorf("%w: timezone: %w", booking.ErrInvalidConfig, err)
		}
		cfg.Location = loc
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return RunFile{}, err
	}

	rf := RunFile{
		Run: cfg,
		Directory: DirectoryConfig{
			Kind:     getdefault(y.Directory.Kind, DirectoryHTTP),
			URL:      y.Directory.URL,
			Username: y.Directory.Username,
			Password: getenv("DIRECTORY_PASSWORD", y.Directory.Password),
			CacheTTL: y.Directory.CacheTTL,
		},
		Controller: ControllerConfig{
			Kind:  getdefault(y.Controller.Kind, ControllerHTTP),
			URL:   y.Controller.URL,
			Token: getenv("CONTROLLER_TOKEN", y.Controller.Token),
		},
	}
	if rf.Directory.CacheTTL == 0 {
		rf.Directory.CacheTTL = time.Minute
	}
	if len(y.Directory.Static) > 0 {
		rf.Directory.Static = make(booking.Occupancy, len(y.Directory.Static))
		for c, n := range y.Directory.Static {
			rf.Directory.Static[booking.CourtID(c)] = n
		}
	}

	switch rf.Directory.Kind {
	case DirectoryHTTP:
		if rf.Directory.URL == "" && cfg.Mode == booking.ModeOccupancy {
			return RunFile{}, fmt.Errorf("%w: directory.url required", booking.ErrInvalidConfig)
		}
	case DirectoryStatic:
	default:
		return RunFile{}, fmt.Errorf("%w: unknown directory kind %q", booking.ErrInvalidConfig, rf.Directory.Kind)
	}
	switch rf.Controller.Kind {
	case ControllerHTTP:
		if rf.Controller.URL == "" {
			return RunFile{}, fmt.Errorf("%w: controller.url required", booking.ErrInvalidConfig)
		}
	case ControllerDryRun:
	default:
		return RunFile{}, fmt.Errorf("%w: unknown controller kind %q", booking.ErrInvalidConfig, rf.Controller.Kind)
	}
	return rf, nil
}

func getdefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
