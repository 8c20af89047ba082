// cmd/count.go
package cmd

import (
	"fmt"
	"os"

	"github.com/ColonelBlimp/whistlecounter/internal/audio"
	"github.com/ColonelBlimp/whistlecounter/internal/config"
	"github.com/ColonelBlimp/whistlecounter/internal/whistle"
	"github.com/spf13/cobra"
)

var countCmd = &cobra.Command{
	Use:   "count <file.wav>",
	Short: "Count whistles in a WAV file",
	Long: `Runs the same detection engine over a WAV recording instead of a live
device. Useful for tuning thresholds against a known recording; two runs over
the same file always produce the same events.`,
	Args: cobra.ExactArgs(1),
	RunE: runCount,
}

func init() {
	rootCmd.AddCommand(countCmd)
}

func runCount(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	blocks, sampleRate, err := audio.ReadWAVBlocks(args[0], settings.BlockSize)
	if err != nil {
		return err
	}
	if sampleRate != settings.SampleRate {
		fmt.Fprintf(os.Stderr, "note: using file sample rate %d Hz (config says %d)\n",
			sampleRate, settings.SampleRate)
	}

	cfg := detectorConfig(settings)
	cfg.SampleRate = sampleRate
	detector, err := whistle.New(cfg)
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	sink := whistle.NewConsoleSink(cmd.OutOrStdout())
	detector.SetSink(sink)

	for _, block := range blocks {
		if _, err := detector.ProcessBlock(block); err != nil {
			return err
		}
	}

	sink.Summary()
	return nil
}
