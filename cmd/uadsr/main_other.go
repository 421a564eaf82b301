//go:build !linux

package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Fprintln(os.Stderr, "uadsr drives GPIO lines through the Linux character device and only runs on Linux; use uadsr-sim elsewhere")
	os.Exit(1)
}
