// Package qiyicube provides a Go library for QiYi smart cubes over
// Bluetooth Low Energy (BLE).
//
// # Features
//
//   - Device discovery and connection
//   - Encrypted frame codec with CRC-16/MODBUS trailers
//   - Full 54-facelet state on every notification
//   - Move recognition and solved-state detection
//
// # Quick Start
//
//	ctx := context.Background()
//	cube, err := qiyicube.Connect(ctx, "CC:A3:00:00:25:13")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer cube.Close()
//
//	cube.OnMove(func(m qiyicube.Move) {
//	    fmt.Println("Move:", m.Notation())
//	})
//	cube.OnSolved(func() {
//	    fmt.Println("Solved!")
//	})
//
//	if err := cube.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Connect establishes the link and subscribes to notifications; Start sends
// the handshake, after which the cube reports its state. Register callbacks
// before calling Start so the first state snapshot is not missed.
//
// # Cube State
//
// CubeState holds 54 facelet color codes, face by face in U, R, F, D, L, B
// order. It can be used without a connection:
//
//	state := qiyicube.SolvedState
//	fmt.Println(state.IsSolved(), state.Notation())
package qiyicube
