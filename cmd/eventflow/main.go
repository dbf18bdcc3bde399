package main

import (
	"os"

	appLog "eventflow/internal/log"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		appLog.Error("eventflow failed", err)
		os.Exit(1)
	}
}
