// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

const (
	AppName       = "whistlecounter"
	ConfigType    = "yaml"
	DefaultConfig = `# Whistle Counter Configuration

# Audio device settings
device_index: -1        # -1 for default capture device
sample_rate: 16000      # Audio sample rate in Hz
channels: 1             # Number of channels (core requires mono)
block_size: 1024        # Samples per processing step

# Whistle acceptance window
min_duration: 1.0       # Shortest whistle counted (seconds)
max_duration: 15.0      # Longest whistle counted (seconds)

# Envelope thresholds
rise_multiplier: 6.0    # Energy must exceed rise x noise floor to open a whistle
fall_multiplier: 3.0    # Energy must stay below fall x noise floor to close one
                        # fall must be smaller than rise (hysteresis band)
hold_seconds: 0.4       # Continuous quiet time required before a whistle closes

# Noise floor
alpha: 0.02             # Floor smoothing factor (0-1). Small = slow, noise-resistant.
                        # Large values track faster but let a long whistle drag the
                        # floor up underneath itself, shortening detected events.
warmup_seconds: 1.0     # Floor adapts but detection is suppressed for this long
seed_floor: 0.0         # 0 seeds the floor from the first block's energy;
                        # > 0 starts from a fixed floor instead

# Output
debug: false            # Periodic energy/floor trace on stderr
`
)

// Settings holds all application configuration
type Settings struct {
	// Audio device settings
	DeviceIndex int `mapstructure:"device_index"`
	SampleRate  int `mapstructure:"sample_rate"`
	Channels    int `mapstructure:"channels"`
	BlockSize   int `mapstructure:"block_size"`

	// Whistle acceptance window
	MinDuration float64 `mapstructure:"min_duration"`
	MaxDuration float64 `mapstructure:"max_duration"`

	// Envelope thresholds
	RiseMultiplier float64 `mapstructure:"rise_multiplier"`
	FallMultiplier float64 `mapstructure:"fall_multiplier"`
	HoldSeconds    float64 `mapstructure:"hold_seconds"`

	// Noise floor
	Alpha         float64 `mapstructure:"alpha"`
	WarmupSeconds float64 `mapstructure:"warmup_seconds"`
	SeedFloor     float64 `mapstructure:"seed_floor"`

	// Output
	Debug bool `mapstructure:"debug"`
}

// Init initializes Viper with defaults and config file.
// Config file search order: current directory, then ~/.config/whistlecounter/
func Init() error {
	// Set defaults
	viper.SetDefault("device_index", -1)
	viper.SetDefault("sample_rate", 16000)
	viper.SetDefault("channels", 1)
	viper.SetDefault("block_size", 1024)
	viper.SetDefault("min_duration", 1.0)
	viper.SetDefault("max_duration", 15.0)
	viper.SetDefault("rise_multiplier", 6.0)
	viper.SetDefault("fall_multiplier", 3.0)
	viper.SetDefault("hold_seconds", 0.4)
	viper.SetDefault("alpha", 0.02)
	viper.SetDefault("warmup_seconds", 1.0)
	viper.SetDefault("seed_floor", 0.0)
	viper.SetDefault("debug", false)

	// Support both config.yaml and .config.yaml
	viper.SetConfigType(ConfigType)

	// Priority order: current directory first, then XDG config
	viper.AddConfigPath(".")

	configDir, err := os.UserConfigDir()
	if err != nil {
		configDir = filepath.Join(os.Getenv("HOME"), ".config")
	}
	viper.AddConfigPath(filepath.Join(configDir, AppName))

	// Try .config.yaml first (hidden file), then config.yaml
	viper.SetConfigName(".config")
	if err = viper.ReadInConfig(); err != nil {
		// Try config.yaml as fallback
		viper.SetConfigName("config")
		err = viper.ReadInConfig()
	}

	// Read config file - if not found, create default in XDG config dir
	if err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if errors.As(err, &configFileNotFoundError) {
			// No config found - create default in ~/.config/whistlecounter/
			xdgConfigPath := filepath.Join(configDir, AppName)
			if err = ensureConfigExists(xdgConfigPath); err != nil {
				return err
			}
			// Read the newly created config
			if err = viper.ReadInConfig(); err != nil {
				return fmt.Errorf("read config: %w", err)
			}
		} else {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return nil
}

func ensureConfigExists(configPath string) error {
	configFile := filepath.Join(configPath, "config.yaml")

	if _, err := os.Stat(configFile); os.IsNotExist(err) {
		if err = os.MkdirAll(configPath, 0755); err != nil {
			return fmt.Errorf("create config dir: %w", err)
		}
		if err = os.WriteFile(configFile, []byte(DefaultConfig), 0644); err != nil {
			return fmt.Errorf("write default config: %w", err)
		}
	}
	return nil
}

// Get returns the current settings
func Get() (*Settings, error) {
	var s Settings
	if err := viper.Unmarshal(&s); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &s, nil
}

// Validate checks that all settings are within acceptable ranges.
// An inconsistent hysteresis band or smoothing factor is a startup
// error; the detector never runs with one.
func (s *Settings) Validate() error {
	var errs []error

	// Audio device settings
	if s.SampleRate <= 0 {
		errs = append(errs, fmt.Errorf("sample_rate must be positive, got %d", s.SampleRate))
	}
	if s.Channels != 1 {
		errs = append(errs, fmt.Errorf("channels must be 1 (mono), got %d", s.Channels))
	}
	if s.BlockSize <= 0 {
		errs = append(errs, fmt.Errorf("block_size must be positive, got %d", s.BlockSize))
	}

	// Whistle acceptance window
	if s.MinDuration < 0 {
		errs = append(errs, fmt.Errorf("min_duration must be non-negative, got %v", s.MinDuration))
	}
	if s.MaxDuration < s.MinDuration {
		errs = append(errs, fmt.Errorf("max_duration (%v) must not be smaller than min_duration (%v)", s.MaxDuration, s.MinDuration))
	}

	// Envelope thresholds
	if s.RiseMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("rise_multiplier must be positive, got %v", s.RiseMultiplier))
	}
	if s.FallMultiplier <= 0 {
		errs = append(errs, fmt.Errorf("fall_multiplier must be positive, got %v", s.FallMultiplier))
	}
	if s.FallMultiplier >= s.RiseMultiplier {
		errs = append(errs, fmt.Errorf("fall_multiplier (%v) must be smaller than rise_multiplier (%v) for hysteresis", s.FallMultiplier, s.RiseMultiplier))
	}
	if s.HoldSeconds < 0 {
		errs = append(errs, fmt.Errorf("hold_seconds must be non-negative, got %v", s.HoldSeconds))
	}

	// Noise floor
	if s.Alpha <= 0 || s.Alpha > 1 {
		errs = append(errs, fmt.Errorf("alpha must be between 0 (exclusive) and 1, got %v", s.Alpha))
	}
	if s.WarmupSeconds < 0 {
		errs = append(errs, fmt.Errorf("warmup_seconds must be non-negative, got %v", s.WarmupSeconds))
	}
	if s.SeedFloor < 0 {
		errs = append(errs, fmt.Errorf("seed_floor must be non-negative, got %v", s.SeedFloor))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
