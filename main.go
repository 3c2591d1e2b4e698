package main

import (
	"os"

	"github.com/fairlens/leaseaudit/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
