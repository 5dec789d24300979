package qiyicube

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/ble"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/session"
)

// helloDelay lets the BLE stack settle after subscribing before the hello.
const helloDelay = 100 * time.Millisecond

// Device represents a discovered cube.
type Device struct {
	Name    string // Advertised name (e.g., "QY-QYSC-S-8A2F")
	Address string // Platform address; a MAC on Linux and Windows
	RSSI    int16  // Signal strength in dBm
}

// Cube represents a connected QiYi smart cube.
// It wraps the BLE connection and the protocol session and exposes a
// callback-based API.
//
//	cube, err := qiyicube.Connect(ctx, "CC:A3:00:00:25:13")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cube.Close()
//
//	cube.OnStateUpdated(func(s qiyicube.CubeState, battery int) { ... })
//	if err := cube.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
type Cube struct {
	client  *ble.Client
	session *session.Session
	mac     [6]byte
	device  Device
	config  *config
	log     *zap.Logger

	mu      sync.RWMutex
	started bool
	cancel  context.CancelFunc
	done    chan struct{}
	runErr  error

	// dispatching counts callbacks in progress on the session goroutine.
	dispatching atomic.Int32

	// Callbacks
	onState      func(CubeState, int)
	onMove       func(Move)
	onSolved     func()
	onDisconnect func(error)
}

// Scan discovers nearby cubes by advertised name.
// Returns all devices found within the timeout period.
func Scan(ctx context.Context, timeout time.Duration) ([]Device, error) {
	client, err := ble.NewClient(logging.Named("ble"))
	if err != nil {
		return nil, err
	}

	results, err := client.Scan(ctx, timeout)
	if err != nil {
		return nil, err
	}

	devices := make([]Device, len(results))
	for i, r := range results {
		devices[i] = Device{Name: r.Name, Address: r.Address, RSSI: r.RSSI}
	}
	return devices, nil
}

// Connect connects to the cube with hardware address address and subscribes
// to its notifications. The handshake is not sent until Start.
//
// The hardware address is required even on platforms that hide it, because
// the handshake carries it.
func Connect(ctx context.Context, address string, opts ...Option) (*Cube, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	log := cfg.logger
	if log == nil {
		log = logging.GetLogger()
	}

	mac, err := protocol.ParseMAC(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}

	client, err := ble.NewClient(log.Named("ble"))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	if err := client.Connect(ctx, address, cfg.scanTimeout); err != nil {
		if errors.Is(err, ble.ErrDeviceNotFound) {
			return nil, ErrDeviceNotFound
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}

	return newCube(client, client, mac, cfg, log), nil
}

func newCube(client *ble.Client, transport session.Transport, mac [6]byte, cfg *config, log *zap.Logger) *Cube {
	c := &Cube{
		client: client,
		mac:    mac,
		config: cfg,
		log:    log,
	}
	if client != nil {
		c.device = Device{Name: client.DeviceName(), Address: client.Address()}
	}

	c.session = session.New(transport,
		session.WithLogger(log.Named("session")),
		session.WithCRCValidation(cfg.verifyCRC),
		session.WithMoveHistory(cfg.moveHistory),
		session.WithStateCallback(c.fireState),
		session.WithMoveCallback(c.fireMove),
		session.WithSolvedCallback(c.fireSolved),
	)
	return c
}

// Start sends the handshake and begins processing notifications in order.
// The session keeps running until Close or a transport failure.
func (c *Cube) Start(ctx context.Context) error {
	if c.client == nil {
		return ErrNotConnected
	}
	return c.start(ctx, c.client.Notifications())
}

func (c *Cube) start(ctx context.Context, inbound <-chan []byte) error {
	c.mu.Lock()
	if c.started {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.started = true
	c.mu.Unlock()

	select {
	case <-time.After(helloDelay):
	case <-ctx.Done():
		c.Close()
		return ctx.Err()
	}

	// Frames arriving before the hello stay queued in inbound until the
	// session accepts them.
	if err := c.session.Start(ctx, c.mac); err != nil {
		c.Close()
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	c.log.Info("app hello sent", zap.String("device", c.device.Name))

	runCtx, cancel := context.WithCancel(context.Background())
	c.mu.Lock()
	c.cancel = cancel
	c.done = make(chan struct{})
	c.mu.Unlock()

	go c.run(runCtx, inbound)

	if c.config.syncOnStart {
		if err := c.session.RequestSync(ctx); err != nil {
			c.log.Warn("sync request failed", zap.Error(err))
		}
	}
	return nil
}

// run owns the session loop and tears down the link when it ends.
func (c *Cube) run(ctx context.Context, inbound <-chan []byte) {
	defer close(c.done)

	err := c.session.Run(ctx, inbound)
	if errors.Is(err, context.Canceled) {
		err = nil
	}

	if c.client != nil {
		if derr := c.client.Disconnect(); derr != nil && err == nil {
			err = derr
		}
	}

	c.mu.Lock()
	c.runErr = err
	cb := c.onDisconnect
	c.mu.Unlock()

	if err != nil {
		c.log.Error("session ended", zap.Error(err))
	}
	if cb != nil {
		c.dispatch(func() { cb(err) })
	}
}

// Close stops the session and disconnects from the cube.
//
// Close waits for teardown, except when called from a callback: callbacks
// run on the session goroutine, so Close only requests the stop there and
// Wait reports when it is done.
func (c *Cube) Close() error {
	c.mu.RLock()
	cancel, done := c.cancel, c.done
	c.mu.RUnlock()

	if cancel == nil {
		c.session.Close()
		if c.client != nil {
			return c.client.Disconnect()
		}
		return nil
	}

	cancel()
	if c.dispatching.Load() > 0 {
		return nil
	}
	<-done

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

// Wait blocks until the session ends and returns the error that ended it.
func (c *Cube) Wait() error {
	c.mu.RLock()
	done := c.done
	c.mu.RUnlock()
	if done == nil {
		return ErrNotConnected
	}
	<-done

	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.runErr
}

// Device returns the connected device.
func (c *Cube) Device() Device {
	return c.device
}

// IsConnected returns true if still connected to the cube.
func (c *Cube) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Event callbacks

// OnStateUpdated sets a callback that fires for every state snapshot.
// battery is -1 until the cube has reported a level.
func (c *Cube) OnStateUpdated(cb func(state CubeState, battery int)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onState = cb
}

// OnMove sets a callback that fires for each recognized move.
func (c *Cube) OnMove(cb func(Move)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onMove = cb
}

// OnSolved sets a callback that fires when the cube becomes solved.
// It does not fire again until the cube has left the solved state.
func (c *Cube) OnSolved(cb func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onSolved = cb
}

// OnDisconnect sets a callback for the end of the session. err is nil after
// Close and non-nil after a transport failure.
func (c *Cube) OnDisconnect(cb func(error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onDisconnect = cb
}

func (c *Cube) fireState(s CubeState, battery int) {
	c.mu.RLock()
	cb := c.onState
	c.mu.RUnlock()
	if cb != nil {
		c.dispatch(func() { cb(s, battery) })
	}
}

func (c *Cube) fireMove(m Move) {
	c.mu.RLock()
	cb := c.onMove
	c.mu.RUnlock()
	if cb != nil {
		c.dispatch(func() { cb(m) })
	}
}

func (c *Cube) fireSolved() {
	c.mu.RLock()
	cb := c.onSolved
	c.mu.RUnlock()
	if cb != nil {
		c.dispatch(func() { cb() })
	}
}

func (c *Cube) dispatch(fn func()) {
	c.dispatching.Add(1)
	defer c.dispatching.Add(-1)
	fn()
}

// State access

// State returns the last reported cube state.
func (c *Cube) State() CubeState {
	return c.session.Cube()
}

// IsSolved returns true if the last reported state was solved.
func (c *Cube) IsSolved() bool {
	return c.session.IsSolved()
}

// Battery returns the last known battery level (0-100), or -1 if unknown.
func (c *Cube) Battery() int {
	return c.session.Battery()
}

// Moves returns the move history since connection or last clear.
func (c *Cube) Moves() []Move {
	return c.session.Moves()
}

// ClearHistory clears the move history.
func (c *Cube) ClearHistory() {
	c.session.ClearMoves()
}

// SessionState returns the handshake state: disconnected, handshaking or
// streaming.
func (c *Cube) SessionState() string {
	return c.session.State().String()
}

// Control

// RequestSync asks the cube to reset its internal state to solved.
func (c *Cube) RequestSync(ctx context.Context) error {
	return c.session.RequestSync(ctx)
}
