// Package main is the entry point for the Guidepost authentication API server.
package main

import (
	"os"

	"github.com/guidepost-hq/guidepost/cmd/guidepost-api/app"
	"github.com/guidepost-hq/guidepost/pkg/logger"
)

func main() {
	logger.Initialize()
	defer logger.Sync()

	if err := app.NewRootCmd().Execute(); err != nil {
		logger.Sync()
		os.Exit(1)
	}
}
