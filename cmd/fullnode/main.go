// Command fullnode runs a Bitcoin-protocol full node: wire codec, chain
// validation, and peer discovery/download over a cobra CLI.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
