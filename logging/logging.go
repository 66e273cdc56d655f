// Package logging builds the structured logger shared by the server
// components. Components derive scoped entries with WithField rather
// than logging through a package global.
package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// New constructs a logrus logger from textual level and format settings.
// Unknown levels fall back to info; any format other than "json" selects
// the human-readable text formatter.
func New(level, format string) *logrus.Logger {
	log := logrus.New()

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	log.SetLevel(lvl)

	if strings.EqualFold(format, "json") {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return log
}
