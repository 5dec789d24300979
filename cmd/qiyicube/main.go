// qiyicube - CLI for watching, recording and decoding QiYi smart cube sessions.
package main

import (
	"github.com/SeamusWaldron/qiyicube_ble_library/internal/cli"
)

func main() {
	cli.Execute()
}
