// Command bridged runs the llamabridge session manager on a desktop: an HTTP
// bring-up server, one-shot generation and model listing.
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
