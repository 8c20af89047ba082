// cmd/devices.go
package cmd

import (
	"fmt"

	"github.com/ColonelBlimp/whistlecounter/internal/audio"
	"github.com/spf13/cobra"
)

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List available audio capture devices",
	RunE:  runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)
}

func runDevices(cmd *cobra.Command, args []string) error {
	capture := audio.New(audio.DefaultConfig())
	if err := capture.Init(); err != nil {
		return err
	}
	defer capture.Close()

	devices, err := capture.ListDevices()
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Found %d capture devices:\n", len(devices))
	for i, d := range devices {
		fmt.Fprintf(cmd.OutOrStdout(), "  [%d] %s\n", i, d.Name())
	}
	return nil
}
