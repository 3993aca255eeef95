// Command vcrefresh diffs two annotated HTML renders and prints the refresh
// a client holding the first needs to show the second.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
