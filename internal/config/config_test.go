package config

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/court-scheduler/internal/domain/booking"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"LISTEN_ADDR", "SCHED_POLL_SECONDS", "COOKIE_HASH_KEY", "COOKIE_BLOCK_KEY", "MQTT_BROKER", "INFLUX_URL", "BOOKING_CONFIG"} {
		t.Setenv(k, "")
	}
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 15*time.Second, cfg.PollInterval)
	assert.Equal(t, "booking.yaml", cfg.BookingConfig)
	assert.False(t, cfg.MQTT.Enabled())
	assert.False(t, cfg.Influx.Enabled())
	assert.Error(t, cfg.RequireSessionKeys())
}

func TestFromEnvKeys(t *testing.T) {
	hash := base64.StdEncoding.EncodeToString(make([]byte, 32))
	block := base64.StdEncoding.EncodeToString(make([]byte, 16))
	keyFile := filepath.Join(t.TempDir(), "hash")
	require.NoError(t, os.WriteFile(keyFile, []byte(hash+"\n"), 0o600))

	t.Setenv("COOKIE_HASH_KEY", keyFile)
	t.Setenv("COOKIE_BLOCK_KEY", block)
	t.Setenv("SCHED_POLL_SECONDS", "3")
	t.Setenv("MQTT_BROKER", "tcp://localhost:1883")

	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Len(t, cfg.CookieHashKey, 32)
	assert.Len(t, cfg.CookieBlockKey, 16)
	assert.Equal(t, 3*time.Second, cfg.PollInterval)
	assert.True(t, cfg.MQTT.Enabled())
	assert.NoError(t, cfg.RequireSessionKeys())
}

func TestFromEnvInvalid(t *testing.T) {
	t.Setenv("SCHED_POLL_SECONDS", "0")
	_, err := FromEnv()
	assert.Error(t, err)

	t.Setenv("SCHED_POLL_SECONDS", "5")
	t.Setenv("COOKIE_HASH_KEY", "not base64!")
	_, err = FromEnv()
	assert.ErrorContains(t, err, "COOKIE_HASH_KEY")
}

const fullRun = `
resource_group: tennis
desired_count: 2
courts: [1, 2]
per_court_capacity: 2
max_slots: 3
slot_hour: 7
cutoff_minute: 40
timezone: Asia/Kolkata
allocation_mode: occupancy
targets: [pixel-a, pixel-b]
polling:
  long: 20s
  short: 100ms
acquire:
  attempts: 5
  retry_delay: 1s
directory:
  kind: http
  url: https://portal.example
  username: flat-12
  password: from-file
controller:
  kind: http
  url: http://agent:7000
  token: t0k
`

func TestParseRun(t *testing.T) {
	t.Setenv("DIRECTORY_PASSWORD", "")
	t.Setenv("CONTROLLER_TOKEN", "")

	rf, err := ParseRun([]byte(fullRun))
	require.NoError(t, err)

	c := rf.Run
	assert.Equal(t, "tennis", c.ResourceGroup)
	assert.Equal(t, []booking.CourtID{1, 2}, c.Courts)
	assert.Equal(t, 3, c.Ceiling())
	assert.Equal(t, booking.FixedSlot(7), c.Slot)
	assert.Equal(t, 40, c.CutoffMinute)
	assert.Equal(t, "Asia/Kolkata", c.Location.String())
	assert.Equal(t, 20*time.Second, c.LongInterval)
	assert.Equal(t, 100*time.Millisecond, c.ShortInterval)
	assert.Equal(t, booking.Lead+40*time.Second, c.SwitchThreshold)
	assert.Equal(t, 5, c.AcquireAttempts)
	assert.Equal(t, "pixel-b", c.TargetName(1))

	assert.Equal(t, "from-file", rf.Directory.Password)
	assert.Equal(t, time.Minute, rf.Directory.CacheTTL)
	assert.Equal(t, "t0k", rf.Controller.Token)
}

func TestParseRunEnvOverrides(t *testing.T) {
	t.Setenv("DIRECTORY_PASSWORD", "from-env")
	t.Setenv("CONTROLLER_TOKEN", "env-token")

	rf, err := ParseRun([]byte(fullRun))
	require.NoError(t, err)
	assert.Equal(t, "from-env", rf.Directory.Password)
	assert.Equal(t, "env-token", rf.Controller.Token)
}

func TestParseRunMinimal(t *testing.T) {
	rf, err := ParseRun([]byte(`
courts: [1]
slot_hour: auto
allocation_mode: alternate
directory: {kind: static, static: {1: 1}}
controller: {kind: dryrun}
`))
	require.NoError(t, err)
	assert.True(t, rf.Run.Slot.Auto)
	assert.Equal(t, booking.DefaultCutoffMinute, rf.Run.CutoffMinute)
	assert.Equal(t, booking.ModeAlternate, rf.Run.Mode)
	assert.Equal(t, booking.Occupancy{1: 1}, rf.Directory.Static)
	assert.Equal(t, booking.DefaultLongInterval, rf.Run.LongInterval)
}

func TestParseRunInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"no courts", "controller: {kind: dryrun}\n"},
		{"slot hour out of range", "courts: [1]\nslot_hour: 24\ncontroller: {kind: dryrun}\n"},
		{"slot hour not a number", "courts: [1]\nslot_hour: morning\ncontroller: {kind: dryrun}\n"},
		{"unknown field", "courts: [1]\nspeed: fast\ncontroller: {kind: dryrun}\n"},
		{"bad timezone", "courts: [1]\ntimezone: Mars/Olympus\ncontroller: {kind: dryrun}\n"},
		{"missing directory url", "courts: [1]\ncontroller: {kind: dryrun}\n"},
		{"missing controller url", "courts: [1]\ndirectory: {kind: static}\n"},
		{"unknown controller", "courts: [1]\ndirectory: {kind: static}\ncontroller: {kind: carrier-pigeon}\n"},
		{"short above long", "courts: [1]\npolling: {long: 1s, short: 2s}\ndirectory: {kind: static}\ncontroller: {kind: dryrun}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRun([]byte(tt.yaml))
			assert.Error(t, err)
		})
	}
}

func TestLoadRunMissingFile(t *testing.T) {
	_, err := LoadRun(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read run config")
}
