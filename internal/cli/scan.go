package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/qiyicube_ble_library"
)

var scanDuration time.Duration

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for nearby QiYi cubes",
	Long: `Scan for cubes advertising the QY-QYSC name prefix and print their
addresses. Rotate the cube to wake it up before scanning.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "timeout", "t", 5*time.Second, "How long to scan")
	rootCmd.AddCommand(scanCmd)
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Println("Scanning for QiYi cubes...")

	devices, err := qiyicube.Scan(ctx, scanDuration)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	if len(devices) == 0 {
		fmt.Println("No cubes found.")
		fmt.Println()
		fmt.Println("To fix this:")
		fmt.Println("  1. Rotate your cube to wake it up")
		fmt.Println("  2. Make sure it's not connected to your phone")
		fmt.Println("  3. Run this command again")
		return nil
	}

	fmt.Printf("\n%-20s  %-20s  %s\n", "NAME", "ADDRESS", "RSSI")
	for _, d := range devices {
		fmt.Printf("%-20s  %-20s  %d dBm\n", d.Name, d.Address, d.RSSI)
	}
	return nil
}
