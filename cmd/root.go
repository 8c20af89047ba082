// cmd/root.go
package cmd

import (
	"fmt"
	"os"

	"github.com/ColonelBlimp/whistlecounter/internal/config"
	"github.com/ColonelBlimp/whistlecounter/internal/whistle"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "whistlecounter",
	Short: "Count pressure-cooker whistles from audio input",
	Long: `An energy-envelope whistle counter that listens to audio input and
counts each whistle blast exactly once, adapting to ambient noise.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags (override config file)
	rootCmd.PersistentFlags().IntP("device", "d", -1, "audio device index (-1 for default)")
	rootCmd.PersistentFlags().Float64P("rise", "r", 6.0, "start whistle at rise x noise floor")
	rootCmd.PersistentFlags().Float64P("fall", "f", 3.0, "end whistle below fall x noise floor")
	rootCmd.PersistentFlags().Float64("hold", 0.4, "quiet seconds required to close a whistle")
	rootCmd.PersistentFlags().Float64("min", 1.0, "minimum whistle length in seconds")
	rootCmd.PersistentFlags().Float64("max", 15.0, "maximum whistle length in seconds")
	rootCmd.PersistentFlags().Float64P("alpha", "a", 0.02, "noise floor smoothing factor (0-1)")
	rootCmd.PersistentFlags().Float64P("warmup", "w", 1.0, "baseline learning period at start (s)")
	rootCmd.PersistentFlags().BoolP("debug", "D", false, "enable energy/floor trace output")

	// Bind flags to viper
	viper.BindPFlag("device_index", rootCmd.PersistentFlags().Lookup("device"))
	viper.BindPFlag("rise_multiplier", rootCmd.PersistentFlags().Lookup("rise"))
	viper.BindPFlag("fall_multiplier", rootCmd.PersistentFlags().Lookup("fall"))
	viper.BindPFlag("hold_seconds", rootCmd.PersistentFlags().Lookup("hold"))
	viper.BindPFlag("min_duration", rootCmd.PersistentFlags().Lookup("min"))
	viper.BindPFlag("max_duration", rootCmd.PersistentFlags().Lookup("max"))
	viper.BindPFlag("alpha", rootCmd.PersistentFlags().Lookup("alpha"))
	viper.BindPFlag("warmup_seconds", rootCmd.PersistentFlags().Lookup("warmup"))
	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
}

func initConfig() {
	if err := config.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
}

// detectorConfig maps validated settings onto the detector configuration.
func detectorConfig(s *config.Settings) whistle.Config {
	return whistle.Config{
		SampleRate:  s.SampleRate,
		BlockSize:   s.BlockSize,
		Rise:        s.RiseMultiplier,
		Fall:        s.FallMultiplier,
		Hold:        s.HoldSeconds,
		MinDuration: s.MinDuration,
		MaxDuration: s.MaxDuration,
		Alpha:       s.Alpha,
		Warmup:      s.WarmupSeconds,
		SeedFloor:   s.SeedFloor,
	}
}
