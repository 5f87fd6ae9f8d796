// Package main is the entry point for the tenantgate CLI.
package main

import (
	"os"

	"github.com/tenantgate/tenantgate/cmd/tgate/app"
	"github.com/tenantgate/tenantgate/pkg/logger"
)

func main() {
	// Initialize the logger
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
