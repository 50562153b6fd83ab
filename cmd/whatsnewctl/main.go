// whatsnewctl talks to the upstream What's New API directly: list, inspect,
// push and delete records, and preview RSS imports.
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
