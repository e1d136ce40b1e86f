package main

import (
	"fmt"
	"os"

	"github.com/itohio/emgkb/pkg/recovery"
)

func main() {
	defer recovery.HandlePanic()

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
