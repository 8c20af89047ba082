// cmd/listen.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ColonelBlimp/whistlecounter/internal/audio"
	"github.com/ColonelBlimp/whistlecounter/internal/config"
	"github.com/ColonelBlimp/whistlecounter/internal/dsp"
	"github.com/ColonelBlimp/whistlecounter/internal/recovery"
	"github.com/ColonelBlimp/whistlecounter/internal/whistle"
	"github.com/spf13/cobra"
)

// debugTraceEvery is how many blocks apart the --debug energy/floor trace
// lines are printed (64 blocks of 1024 at 16 kHz is about every 4 seconds).
const debugTraceEvery = 64

var listenCmd = &cobra.Command{
	Use:   "listen",
	Short: "Count whistles live from a capture device",
	Long: `Opens the configured audio capture device and counts whistle blasts
until interrupted. Prints each event and a final total on exit.`,
	RunE: runListen,
}

func init() {
	rootCmd.AddCommand(listenCmd)
}

func runListen(cmd *cobra.Command, args []string) error {
	settings, err := config.Get()
	if err != nil {
		return err
	}

	detector, err := whistle.New(detectorConfig(settings))
	if err != nil {
		return fmt.Errorf("create detector: %w", err)
	}
	sink := whistle.NewConsoleSink(cmd.OutOrStdout())
	detector.SetSink(sink)

	capture := audio.New(audio.Config{
		DeviceIndex: settings.DeviceIndex,
		SampleRate:  uint32(settings.SampleRate),
		Channels:    uint32(settings.Channels),
		BlockSize:   uint32(settings.BlockSize),
	})
	if err := capture.Init(); err != nil {
		return err
	}
	defer capture.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := capture.Start(ctx); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "Listening...  press Ctrl-C to exit.")

	// The capture callback thread only assembles blocks; all detector state
	// is mutated here, block by block, in arrival order.
	done := make(chan struct{})
	go func() {
		defer recovery.HandlePanicFunc(func() { _ = capture.Close() })
		defer close(done)
		var processed uint64
		for block := range capture.Blocks {
			if _, err := detector.ProcessBlock(block); err != nil {
				fmt.Fprintf(os.Stderr, "process block: %v\n", err)
				continue
			}
			processed++
			if settings.Debug && processed%debugTraceEvery == 0 {
				fmt.Fprintf(os.Stderr, "[%6.2fs] energy=%.6f floor=%.6f in_whistle=%v\n",
					block.Timestamp, dsp.RMSNoCheck(block.Samples), detector.Floor(), detector.InWhistle())
			}
		}
	}()

	<-ctx.Done()
	_ = capture.Stop()
	if err := capture.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close capture: %v\n", err)
	}
	<-done

	if n := capture.Dropped(); n > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d blocks dropped (consumer too slow)\n", n)
	}
	if n := capture.Overruns(); n > 0 {
		fmt.Fprintf(os.Stderr, "warning: %d capture overruns\n", n)
	}

	fmt.Fprintln(cmd.OutOrStdout())
	sink.Summary()
	return nil
}
