// Package ble provides low-level BLE communication with QiYi smart cubes.
package ble

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
)

// Errors
var (
	ErrNotConnected     = errors.New("ble: not connected to device")
	ErrAlreadyConnected = errors.New("ble: already connected to a device")
	ErrDeviceNotFound   = errors.New("ble: device not found")
	ErrServiceNotFound  = errors.New("ble: cube service not found")
)

// NotificationBuffer is the capacity of the notification queue.
const NotificationBuffer = 256

// BLE UUIDs
var (
	serviceUUID = mustParseUUID(protocol.ServiceUUID)
	charUUID    = mustParseUUID(protocol.CharacteristicUUID)
)

func mustParseUUID(s string) bluetooth.UUID {
	u, err := bluetooth.ParseUUID(s)
	if err != nil {
		panic(fmt.Sprintf("ble: bad uuid %q: %v", s, err))
	}
	return u
}

// ScanResult represents a discovered cube.
type ScanResult struct {
	Name    string
	Address string
	RSSI    int16
	addr    bluetooth.Address
}

// IsCube reports whether an advertised name belongs to a QiYi cube.
func IsCube(name string) bool {
	return strings.HasPrefix(name, protocol.DeviceNamePrefix)
}

// Client manages the BLE connection to a cube.
//
// Notifications are copied into a buffered channel in arrival order. If the
// consumer falls NotificationBuffer frames behind, new frames are dropped.
type Client struct {
	adapter *bluetooth.Adapter
	log     *zap.Logger

	mu         sync.RWMutex
	device     bluetooth.Device
	char       bluetooth.DeviceCharacteristic
	connected  bool
	deviceName string
	address    string

	notifications chan []byte
}

// NewClient enables the default adapter and returns a client.
func NewClient(log *zap.Logger) (*Client, error) {
	if log == nil {
		log = logging.Named("ble")
	}

	adapter := bluetooth.DefaultAdapter
	if err := adapter.Enable(); err != nil {
		return nil, fmt.Errorf("failed to enable BLE adapter: %w", err)
	}

	return &Client{
		adapter:       adapter,
		log:           log,
		notifications: make(chan []byte, NotificationBuffer),
	}, nil
}

// Notifications returns the inbound frame queue.
func (c *Client) Notifications() <-chan []byte {
	return c.notifications
}

// Scan returns every cube advertising within timeout.
func (c *Client) Scan(ctx context.Context, timeout time.Duration) ([]ScanResult, error) {
	if c.IsConnected() {
		return nil, ErrAlreadyConnected
	}

	var results []ScanResult
	var mu sync.Mutex
	seen := make(map[string]bool)

	err := c.scan(ctx, timeout, func(result bluetooth.ScanResult) bool {
		name := result.LocalName()
		addr := result.Address.String()

		mu.Lock()
		defer mu.Unlock()
		if seen[addr] || !IsCube(name) {
			return false
		}
		seen[addr] = true
		results = append(results, ScanResult{
			Name:    name,
			Address: addr,
			RSSI:    result.RSSI,
			addr:    result.Address,
		})
		c.log.Debug("cube found", zap.String("name", name), zap.String("address", addr))
		return false
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Find looks for the cube with the given address. If it does not advertise
// within timeout, the first cube seen by name prefix is used instead.
func (c *Client) Find(ctx context.Context, address string, timeout time.Duration) (ScanResult, error) {
	var match, fallback *ScanResult
	var mu sync.Mutex

	err := c.scan(ctx, timeout, func(result bluetooth.ScanResult) bool {
		name := result.LocalName()
		r := ScanResult{
			Name:    name,
			Address: result.Address.String(),
			RSSI:    result.RSSI,
			addr:    result.Address,
		}

		mu.Lock()
		defer mu.Unlock()
		if strings.EqualFold(r.Address, address) {
			match = &r
			return true
		}
		if fallback == nil && IsCube(name) {
			fallback = &r
		}
		return false
	})
	if err != nil {
		return ScanResult{}, err
	}

	mu.Lock()
	defer mu.Unlock()
	switch {
	case match != nil:
		return *match, nil
	case fallback != nil:
		c.log.Info("address not seen, using first cube by name",
			zap.String("address", address),
			zap.String("name", fallback.Name),
		)
		return *fallback, nil
	default:
		return ScanResult{}, ErrDeviceNotFound
	}
}

// scan runs the adapter scan until timeout, ctx is done, or fn returns true.
func (c *Client) scan(ctx context.Context, timeout time.Duration, fn func(bluetooth.ScanResult) bool) error {
	stop := make(chan struct{})
	var stopOnce sync.Once
	done := make(chan error, 1)

	go func() {
		done <- c.adapter.Scan(func(adapter *bluetooth.Adapter, result bluetooth.ScanResult) {
			if fn(result) {
				stopOnce.Do(func() { close(stop) })
			}
		})
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var ctxErr error
	select {
	case <-stop:
	case <-timer.C:
	case <-ctx.Done():
		ctxErr = ctx.Err()
	case err := <-done:
		if err != nil {
			return fmt.Errorf("scan failed: %w", err)
		}
		return nil
	}

	c.adapter.StopScan()
	if err := <-done; err != nil && ctxErr == nil {
		return fmt.Errorf("scan failed: %w", err)
	}
	return ctxErr
}

// Connect finds the cube at address, connects and subscribes to notifications.
func (c *Client) Connect(ctx context.Context, address string, timeout time.Duration) error {
	if c.IsConnected() {
		return ErrAlreadyConnected
	}

	result, err := c.Find(ctx, address, timeout)
	if err != nil {
		return err
	}
	return c.ConnectToResult(ctx, result)
}

// ConnectToResult connects directly to a device from a scan result.
func (c *Client) ConnectToResult(ctx context.Context, result ScanResult) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	device, err := c.adapter.Connect(result.addr, bluetooth.ConnectionParams{})
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	services, err := device.DiscoverServices([]bluetooth.UUID{serviceUUID})
	if err != nil {
		device.Disconnect()
		return fmt.Errorf("failed to discover services: %w", err)
	}
	if len(services) == 0 {
		device.Disconnect()
		return ErrServiceNotFound
	}

	chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{charUUID})
	if err != nil || len(chars) == 0 {
		device.Disconnect()
		return fmt.Errorf("failed to discover characteristics: %v", err)
	}
	char := chars[0]

	if err := char.EnableNotifications(c.handleNotification); err != nil {
		device.Disconnect()
		return fmt.Errorf("failed to enable notifications: %w", err)
	}

	c.mu.Lock()
	c.device = device
	c.char = char
	c.connected = true
	c.deviceName = result.Name
	c.address = result.Address
	c.mu.Unlock()

	c.log.Info("connected", zap.String("name", result.Name), zap.String("address", result.Address))
	return nil
}

// Write sends an encrypted frame without waiting for a response.
func (c *Client) Write(ctx context.Context, frame []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.RLock()
	defer c.mu.RUnlock()
	if !c.connected {
		return ErrNotConnected
	}

	logging.LogRawBytes(c.log, "sending encrypted", frame)
	if _, err := c.char.WriteWithoutResponse(frame); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	return nil
}

// Disconnect disconnects from the current device.
func (c *Client) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.connected {
		return nil
	}

	err := c.device.Disconnect()
	c.connected = false
	c.deviceName = ""
	c.address = ""

	c.log.Info("disconnected")
	return err
}

// IsConnected returns true if connected to a device.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// DeviceName returns the connected device name.
func (c *Client) DeviceName() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deviceName
}

// Address returns the connected device address.
func (c *Client) Address() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.address
}

// handleNotification queues a copy of an incoming notification.
func (c *Client) handleNotification(data []byte) {
	frame := make([]byte, len(data))
	copy(frame, data)

	select {
	case c.notifications <- frame:
	default:
		c.log.Warn("notification queue full, frame dropped", zap.Int("length", len(data)))
	}
}
