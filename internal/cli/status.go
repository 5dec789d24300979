package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/config"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/recorder"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/storage"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, last device and recording status",
	Long:  `Display the config and database in use, the last connected cube, and any session left open by an interrupted watch.`,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}
	state := stateFile.State()

	fmt.Println("QiYi Cube Status")
	fmt.Println("================")
	fmt.Println()

	cfgPath := configPath
	if cfgPath == "" {
		cfgPath, _ = config.DefaultPath()
	}
	fmt.Printf("Config:   %s\n", cfgPath)

	dbFile, err := settings.ResolveDBPath()
	if err != nil {
		return err
	}
	fmt.Printf("Database: %s\n", dbFile)

	db, err := storage.Open(dbFile)
	if err == nil {
		defer db.Close()
		sessions, err := storage.NewSessionRepository(db).List(0)
		if err == nil {
			fmt.Printf("Sessions: %d\n", len(sessions))
			if len(sessions) > 0 {
				fmt.Printf("Last session: %s\n", sessions[0].StartedAt.Local().Format(time.RFC3339))
			}
		}
	}

	fmt.Println()

	if state.ActiveSessionID != "" {
		fmt.Printf("Open session: %s\n", state.ActiveSessionID)
		fmt.Println("  (Use 'qiyicube watch --resume' to continue recording it)")
	} else {
		fmt.Println("No open session")
	}

	fmt.Println()

	switch {
	case state.LastAddress != "":
		fmt.Printf("Last device: %s (%s)\n", state.LastDeviceName, state.LastAddress)
	case settings.Address != "":
		fmt.Printf("Configured device: %s\n", settings.Address)
	default:
		fmt.Println("No device history. Run 'qiyicube scan' to find your cube.")
	}

	return nil
}
