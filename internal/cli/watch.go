package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/SeamusWaldron/qiyicube_ble_library"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/broadcast"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/recorder"
)

var (
	watchAddress  string
	watchListen   string
	watchNoRecord bool
	watchPlain    bool
	watchSync     bool
	watchResume   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [address]",
	Short: "Connect to a cube and show its state live",
	Long: `Connect to a cube, perform the handshake, and display every state
update and move as it arrives. Sessions are recorded to the database unless
--no-record is given.

The address is the cube's Bluetooth MAC, required because the handshake
carries it. It defaults to the config file, then the last connected cube.

When stdout is not a terminal, or with --plain, one line is printed per
event instead of the full-screen view.

Keyboard shortcuts (full-screen view):
  s       - Sync: tell the cube it is solved
  c       - Clear the move list
  q/Esc   - Quit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVarP(&watchAddress, "address", "a", "", "Cube MAC address")
	watchCmd.Flags().StringVar(&watchListen, "listen", "", "Serve JSON events over WebSocket at this address (e.g. :8080)")
	watchCmd.Flags().BoolVar(&watchNoRecord, "no-record", false, "Do not record the session")
	watchCmd.Flags().BoolVar(&watchPlain, "plain", false, "Print events as lines instead of the full-screen view")
	watchCmd.Flags().BoolVar(&watchSync, "sync", false, "Send a solved-state sync after connecting")
	watchCmd.Flags().BoolVar(&watchResume, "resume", false, "Continue the session left open by an interrupted watch")
	rootCmd.AddCommand(watchCmd)
}

// Events delivered to the view.
type connectedMsg struct{ device qiyicube.Device }
type connectErrMsg struct{ err error }
type moveMsg struct{ move qiyicube.Move }
type solvedMsg struct{}
type disconnectedMsg struct{ err error }
type syncDoneMsg struct{ err error }

type stateMsg struct {
	state   qiyicube.CubeState
	battery int
}

// watcher connects to the cube and fans its callbacks out to the recorder,
// the WebSocket hub and the view.
type watcher struct {
	address string
	opts    []qiyicube.Option
	rec     *recorder.Session
	resume  string
	hub     *broadcast.Hub
	log     *zap.Logger
	emit    func(tea.Msg)

	mu   sync.Mutex
	cube *qiyicube.Cube
}

func (w *watcher) connect(ctx context.Context) (*qiyicube.Cube, error) {
	cube, err := qiyicube.Connect(ctx, w.address, w.opts...)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	w.cube = cube
	w.mu.Unlock()

	w.startRecording(cube.Device())

	cube.OnStateUpdated(w.handleState)
	cube.OnMove(w.handleMove)
	cube.OnSolved(w.handleSolved)
	cube.OnDisconnect(func(err error) { w.emit(disconnectedMsg{err: err}) })

	if err := cube.Start(ctx); err != nil {
		cube.Close()
		return nil, err
	}
	return cube, nil
}

func (w *watcher) startRecording(dev qiyicube.Device) {
	if w.rec == nil {
		return
	}

	if w.resume != "" {
		err := w.rec.Resume(w.resume)
		if err == nil {
			return
		}
		w.log.Warn("cannot resume session, starting a new one", zap.String("session_id", w.resume), zap.Error(err))
	}
	if _, err := w.rec.Start(dev.Name, w.address); err != nil {
		w.log.Warn("recording disabled", zap.Error(err))
	}
}

func (w *watcher) handleState(state qiyicube.CubeState, battery int) {
	if w.rec != nil {
		if err := w.rec.HandleState(state, battery); err != nil {
			w.log.Warn("failed to record state", zap.Error(err))
		}
	}
	if w.hub != nil {
		w.hub.Publish(broadcast.StateEvent(state, battery, time.Now()))
	}
	w.emit(stateMsg{state: state, battery: battery})
}

func (w *watcher) handleMove(m qiyicube.Move) {
	if w.rec != nil {
		if err := w.rec.HandleMove(m); err != nil {
			w.log.Warn("failed to record move", zap.Error(err))
		}
	}
	if w.hub != nil {
		w.hub.Publish(broadcast.MoveEvent(m))
	}
	w.emit(moveMsg{move: m})
}

func (w *watcher) handleSolved() {
	if w.rec != nil {
		if err := w.rec.HandleSolved(); err != nil {
			w.log.Warn("failed to record solve", zap.Error(err))
		}
	}
	if w.hub != nil {
		w.hub.Publish(broadcast.SolvedEvent(time.Now()))
	}
	w.emit(solvedMsg{})
}

// close disconnects the cube and ends the recording.
func (w *watcher) close() {
	w.mu.Lock()
	cube := w.cube
	w.cube = nil
	w.mu.Unlock()

	if cube != nil {
		if err := cube.Close(); err != nil {
			w.log.Warn("session ended with error", zap.Error(err))
		}
	}
	if w.rec != nil && w.rec.State() == recorder.StateRecording {
		if err := w.rec.End(); err != nil {
			w.log.Warn("failed to end recording", zap.Error(err))
		}
	}
}

func runWatch(cmd *cobra.Command, args []string) error {
	stateFile, err := recorder.NewDefaultStateFile()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	address := resolveAddress(args, stateFile)
	if address == "" {
		return errors.New("no cube address: pass one, set address in the config, or run 'qiyicube scan'")
	}

	plain := watchPlain || !term.IsTerminal(int(os.Stdout.Fd()))
	if !plain {
		// The full-screen view owns the terminal; send logs to a file.
		if err := logging.InitializeFile(settings.LogLevel, logFilePath()); err != nil {
			return err
		}
	}

	w := &watcher{
		address: address,
		opts: []qiyicube.Option{
			qiyicube.WithScanTimeout(scanTimeout()),
			qiyicube.WithCRCValidation(settings.VerifyCRC),
			qiyicube.WithSyncOnStart(watchSync || settings.RequestSyncOnConnect),
			qiyicube.WithLogger(logging.GetLogger()),
		},
		log: logging.Named("watch"),
	}

	if !watchNoRecord {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()
		w.rec = recorder.NewSession(db, stateFile, logging.Named("recorder"))
		if watchResume {
			w.resume = stateFile.State().ActiveSessionID
		}
	}

	if watchListen != "" {
		w.hub = broadcast.NewHub(logging.Named("broadcast"))
		stopServer := serveEvents(watchListen, w.hub, w.log)
		defer stopServer()
		fmt.Fprintf(os.Stderr, "Serving events at ws://%s/ws\n", watchListen)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer w.close()

	if plain {
		return runPlain(ctx, w, os.Stdout)
	}
	return runTUI(ctx, w)
}

// resolveAddress picks the cube address: argument, flag, config, last device.
func resolveAddress(args []string, stateFile *recorder.StateFile) string {
	switch {
	case len(args) > 0:
		return args[0]
	case watchAddress != "":
		return watchAddress
	case settings.Address != "":
		return settings.Address
	default:
		return stateFile.LastAddress()
	}
}

// serveEvents starts the WebSocket server and returns a function that stops it.
func serveEvents(addr string, hub *broadcast.Hub, log *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/ws", hub)
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("event server failed", zap.Error(err))
		}
	}()

	return func() {
		hub.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func runPlain(ctx context.Context, w *watcher, out io.Writer) error {
	p := &plainPrinter{out: out}
	w.emit = p.print

	fmt.Fprintf(out, "Connecting to %s...\n", w.address)
	cube, err := w.connect(ctx)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	dev := cube.Device()
	fmt.Fprintf(out, "Connected: %s (%s)\n", dev.Name, dev.Address)

	done := make(chan error, 1)
	go func() { done <- cube.Wait() }()

	select {
	case <-ctx.Done():
		return nil
	case err := <-done:
		return err
	}
}

// plainPrinter writes one line per event.
type plainPrinter struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *plainPrinter) print(msg tea.Msg) {
	p.mu.Lock()
	defer p.mu.Unlock()

	ts := time.Now().Format("15:04:05.000")
	switch msg := msg.(type) {
	case stateMsg:
		fmt.Fprintf(p.out, "%s state   %s battery=%s solved=%t\n",
			ts, msg.state.Notation(), formatBattery(msg.battery), msg.state.IsSolved())
	case moveMsg:
		fmt.Fprintf(p.out, "%s move    %s\n", ts, msg.move.Notation())
	case solvedMsg:
		fmt.Fprintf(p.out, "%s solved\n", ts)
	case disconnectedMsg:
		if msg.err != nil {
			fmt.Fprintf(p.out, "%s disconnected: %v\n", ts, msg.err)
		} else {
			fmt.Fprintf(p.out, "%s disconnected\n", ts)
		}
	}
}

func formatBattery(b int) string {
	if b < 0 {
		return "?"
	}
	return fmt.Sprintf("%d%%", b)
}
