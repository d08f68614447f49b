package main

import (
	"fmt"
	"os"

	"github.com/danmuck/reconctl/internal/logging"
)

// Version is set at build time.
var Version = "dev"

func main() {
	logging.ConfigureRuntime("reconctl")
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "reconctl: %v\n", err)
		os.Exit(1)
	}
}
