// BLE raw frame dump - prints every notification from a QiYi cube in the
// hex form accepted by "qiyicube decode", next to its decrypted bytes.
package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SeamusWaldron/qiyicube_ble_library/internal/ble"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/logging"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/protocol"
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/session"
)

func main() {
	fmt.Println("QiYi Raw Frame Dump")
	fmt.Println("===================")
	fmt.Println()

	if len(os.Args) < 2 {
		fmt.Println("usage: qiyicube-raw <cube-mac-address>")
		os.Exit(2)
	}
	address := os.Args[1]

	mac, err := protocol.ParseMAC(address)
	if err != nil {
		fmt.Printf("Invalid address: %v\n", err)
		os.Exit(2)
	}

	if err := logging.Initialize(""); err != nil {
		fmt.Printf("Failed to set up logging: %v\n", err)
		os.Exit(1)
	}

	client, err := ble.NewClient(logging.Named("ble"))
	if err != nil {
		fmt.Printf("Failed to enable adapter: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Printf("Connecting to %s...\n", address)
	if err := client.Connect(ctx, address, 20*time.Second); err != nil {
		fmt.Printf("Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Disconnect()
	fmt.Printf("Connected: %s (%s)\n", client.DeviceName(), client.Address())
	fmt.Println()

	// The session answers hellos and acks so the cube keeps streaming.
	sess := session.New(client, session.WithLogger(logging.Named("session")), session.WithMoveHistory(false))
	defer sess.Close()

	time.Sleep(100 * time.Millisecond)
	if err := sess.Start(ctx, mac); err != nil {
		fmt.Printf("Handshake failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Rotate the cube to see data...")
	fmt.Println("Press Ctrl+C to exit")
	fmt.Println()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\nDisconnecting...")
			return
		case raw := <-client.Notifications():
			dump(raw)
			if err := sess.HandleNotification(ctx, raw); err != nil {
				fmt.Printf("      error: %v\n", err)
			}
		}
	}
}

func dump(raw []byte) {
	fmt.Printf("[RAW] %s\n", hex.EncodeToString(raw))

	f, err := protocol.ParseFrame(raw)
	if err != nil {
		fmt.Printf("      unreadable: %v\n", err)
		return
	}

	crc := "ok"
	if err := f.VerifyCRC(); err != nil {
		crc = "bad"
	}
	fmt.Printf("      Type: %s (0x%02X), Length: %d, CRC: %s\n",
		protocol.MessageTypeName(f.Opcode), f.Opcode, f.Length, crc)
	fmt.Printf("      Decrypted: % x\n", f.Logical())
}
