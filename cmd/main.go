package main

import (
	"os"

	"github.com/Innocase-ai/Mercedes-E-200D/internal/cli"
	log "github.com/sirupsen/logrus"
)

func main() {
	if err := cli.BuildCLI().Execute(); err != nil {
		log.WithError(err).Error("carbook failed")
		os.Exit(1)
	}
}
