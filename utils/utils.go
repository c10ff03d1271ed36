package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

type NetConfig struct {
	Port          int `toml:"port"`
	TickRate      int `toml:"tick_rate"`
	MaxClients    int `toml:"max_clients"`
	MaxWaitMS     int `toml:"max_wait_ms"`
	RetryTimeMS   int `toml:"retry_time_ms"`
	SendQueueSize int `toml:"send_queue_size"`
}

// Tick is NET_TICK: the fixed duration of one simulation step.
func (n NetConfig) Tick() time.Duration {
	return time.Duration(1000/n.TickRate) * time.Millisecond
}

func (n NetConfig) MaxWait() time.Duration {
	return time.Duration(n.MaxWaitMS) * time.Millisecond
}

func (n NetConfig) RetryTime() time.Duration {
	return time.Duration(n.RetryTimeMS) * time.Millisecond
}

type ServerConfig struct {
	Address               string     `toml:"address"`
	TargetInputBufferSize int        `toml:"target_input_buffer_size"`
	MaxInputBufferSize    int        `toml:"max_input_buffer_size"`
	SlotRetentionMS       int        `toml:"slot_retention_ms"`
	Spawn                 [3]float32 `toml:"spawn"`
}

type ClientConfig struct {
	Address                       string `toml:"address"`
	Name                          string `toml:"name"`
	TargetInterpolationBufferSize int    `toml:"target_interpolation_buffer_size"`
	MaxInterpolationBufferSize    int    `toml:"max_interpolation_buffer_size"`
}

type PlaneConfig struct {
	Acceleration      float32 `toml:"acceleration"`
	MinSpeed          float32 `toml:"min_speed"`
	MaxSpeed          float32 `toml:"max_speed"`
	StartForwardSpeed float32 `toml:"start_forward_speed"`
	PitchRateMult     float32 `toml:"pitch_rate_mult"`
	RollRateMult      float32 `toml:"roll_rate_mult"`
	YawRate           float32 `toml:"yaw_rate"`
}

type ResolutionConfig struct {
	X, Y int
}

type UIConfig struct {
	Resolution ResolutionConfig
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

type Config struct {
	Net    NetConfig    `toml:"net"`
	Server ServerConfig `toml:"server"`
	Client ClientConfig `toml:"client"`
	Plane  PlaneConfig  `toml:"plane"`
	UI     UIConfig     `toml:"ui"`
	Log    LogConfig    `toml:"log"`
}

func DefaultConfig() *Config {
	return &Config{
		Net: NetConfig{
			Port:          8888,
			TickRate:      60,
			MaxClients:    64,
			MaxWaitMS:     1000,
			RetryTimeMS:   100,
			SendQueueSize: 1024,
		},
		Server: ServerConfig{
			TargetInputBufferSize: 5,
			MaxInputBufferSize:    60,
		},
		Client: ClientConfig{
			Address:                       "localhost",
			TargetInterpolationBufferSize: 5,
			MaxInterpolationBufferSize:    20,
		},
		Plane: PlaneConfig{
			Acceleration:      400,
			MinSpeed:          500,
			MaxSpeed:          4000,
			StartForwardSpeed: 500,
			PitchRateMult:     200,
			RollRateMult:      200,
			YawRate:           200,
		},
		UI: UIConfig{
			Resolution: ResolutionConfig{X: 1280, Y: 720},
		},
		Log: LogConfig{
			Level:  "info",
			Pretty: true,
		},
	}
}

// ReadTOML reads fileName on top of the defaults. A missing file is not an
// error; the defaults are returned instead.
func ReadTOML(fileName string) (*Config, error) {
	config := DefaultConfig()
	file, err := os.ReadFile(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return config, nil
	}
	if err != nil {
		return nil, err
	}

	if err := toml.Unmarshal(file, config); err != nil {
		return nil, err
	}
	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Load reads the TOML file, then an optional .env file, then applies ACE_*
// environment overrides.
func Load(fileName string) (*Config, error) {
	config, err := ReadTOML(fileName)
	if err != nil {
		return nil, err
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	if err := config.applyEnv(); err != nil {
		return nil, err
	}
	return config, config.validate()
}

func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv("ACE_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("ACE_PORT: " + err.Error())
		}
		c.Net.Port = port
	}
	if v, ok := os.LookupEnv("ACE_TICK_RATE"); ok {
		rate, err := strconv.Atoi(v)
		if err != nil {
			return errors.New("ACE_TICK_RATE: " + err.Error())
		}
		c.Net.TickRate = rate
	}
	if v, ok := os.LookupEnv("ACE_ADDRESS"); ok {
		c.Client.Address = v
	}
	if v, ok := os.LookupEnv("ACE_NAME"); ok {
		c.Client.Name = v
	}
	if v, ok := os.LookupEnv("ACE_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	return nil
}

// MaxPlayerSlots bounds net.max_clients. Snapshots carry player indices in
// one byte.
const MaxPlayerSlots = 256

func (c *Config) validate() error {
	if c.Net.TickRate <= 0 || c.Net.TickRate > 1000 {
		return errors.New("net.tick_rate must be in (0, 1000]")
	}
	if c.Net.MaxClients < 1 || c.Net.MaxClients > MaxPlayerSlots {
		return fmt.Errorf("net.max_clients must be in [1, %d]", MaxPlayerSlots)
	}
	if c.Net.RetryTimeMS <= 0 {
		return errors.New("net.retry_time_ms must be positive")
	}
	if c.Plane.MinSpeed > c.Plane.MaxSpeed {
		return errors.New("plane.min_speed exceeds plane.max_speed")
	}
	return nil
}

func AlmostEqual(a, b, threshold float64) bool {
	return math.Abs(a-b) <= threshold
}

func Clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func Min(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}
