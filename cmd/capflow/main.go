// Command capflow plans and runs capability workflows and serves the HTTP API.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
