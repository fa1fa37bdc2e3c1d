// Package logging configures the process-wide logrus logger.
package logging

import (
	"os"

	log "github.com/sirupsen/logrus"
)

// Setup configures the standard logger. Production emits JSON with the field names
// expected by cloud log collectors; other environments use the text formatter.
func Setup(environment, level string) {
	log.SetOutput(os.Stdout)

	if environment == "production" {
		log.SetFormatter(&log.JSONFormatter{
			FieldMap: log.FieldMap{
				log.FieldKeyLevel: "severity",
				log.FieldKeyMsg:   "message",
				log.FieldKeyTime:  "timestamp",
			},
		})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.WithField("level", level).Warn("Unknown log level, using info")
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}
