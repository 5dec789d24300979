package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/SeamusWaldron/qiyicube_ble_library"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/storage"
)

var sessionsLimit int

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List recorded sessions",
	RunE:  runSessionsList,
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show the moves and final state of a session",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsShow,
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>",
	Short: "Delete a session with its moves and snapshots",
	Args:  cobra.ExactArgs(1),
	RunE:  runSessionsDelete,
}

func init() {
	sessionsCmd.Flags().IntVarP(&sessionsLimit, "limit", "n", 20, "Number of sessions to show (0 for all)")
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	rootCmd.AddCommand(sessionsCmd)
}

func runSessionsList(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	sessions, err := storage.NewSessionRepository(db).List(sessionsLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet. Run 'qiyicube watch' to record one.")
		return nil
	}

	fmt.Fprintf(out, "%-8s  %-19s  %-10s  %6s  %6s  %s\n", "ID", "STARTED", "DURATION", "MOVES", "SOLVES", "DEVICE")
	for _, s := range sessions {
		duration := "open"
		if s.EndedAt != nil {
			duration = formatDuration(s.Duration())
		}
		device := ""
		if s.DeviceName != nil {
			device = *s.DeviceName
		}
		fmt.Fprintf(out, "%-8s  %-19s  %-10s  %6d  %6d  %s\n",
			shortID(s.SessionID),
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			duration,
			s.MoveCount,
			s.SolveCount,
			device,
		)
	}
	return nil
}

func runSessionsShow(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := resolveSessionID(db, args[0])
	if err != nil {
		return err
	}

	sess, err := storage.NewSessionRepository(db).Get(id)
	if err != nil {
		return err
	}
	records, err := storage.NewMoveRepository(db).GetBySession(id)
	if err != nil {
		return err
	}
	last, err := storage.NewSnapshotRepository(db).Latest(id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Session: %s\n", sess.SessionID)
	fmt.Fprintf(out, "Started: %s\n", sess.StartedAt.Local().Format(time.RFC3339))
	if sess.EndedAt != nil {
		fmt.Fprintf(out, "Ended:   %s (%s)\n", sess.EndedAt.Local().Format(time.RFC3339), formatDuration(sess.Duration()))
	}
	if sess.DeviceName != nil {
		fmt.Fprintf(out, "Device:  %s\n", *sess.DeviceName)
	}
	fmt.Fprintf(out, "Solves:  %d\n", sess.SolveCount)
	fmt.Fprintf(out, "Moves:   %d\n", len(records))

	if len(records) > 0 {
		moves := make([]qiyicube.Move, len(records))
		for i, r := range records {
			moves[i] = r.Move()
		}
		fmt.Fprintf(out, "\n%s\n", qiyicube.FormatMoves(moves))
	}

	if last != nil {
		fmt.Fprintf(out, "\nLast state (battery %s):\n%s\n", formatBattery(last.Battery), renderNet(last.State))
	}
	return nil
}

func runSessionsDelete(cmd *cobra.Command, args []string) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	id, err := resolveSessionID(db, args[0])
	if err != nil {
		return err
	}
	if err := storage.NewSessionRepository(db).Delete(id); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Deleted session %s\n", id)
	return nil
}

// resolveSessionID accepts a full ID or a unique prefix as shown by the list.
func resolveSessionID(db *storage.DB, prefix string) (string, error) {
	sessions, err := storage.NewSessionRepository(db).List(0)
	if err != nil {
		return "", err
	}

	var match string
	for _, s := range sessions {
		if s.SessionID == prefix {
			return prefix, nil
		}
		if len(prefix) >= 4 && len(s.SessionID) >= len(prefix) && s.SessionID[:len(prefix)] == prefix {
			if match != "" {
				return "", fmt.Errorf("session prefix %q is ambiguous", prefix)
			}
			match = s.SessionID
		}
	}
	if match == "" {
		return "", storage.ErrSessionNotFound
	}
	return match, nil
}
