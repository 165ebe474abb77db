package configuration

import (
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

func SetupLogging(level, format string) error {
	if level == "" {
		level = log.InfoLevel.String()
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return errors.Wrapf(err, "invalid log level '%s'", level)
	}
	log.SetLevel(lvl)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	default:
		return errors.Errorf("unsupported log format '%s'", format)
	}
	return nil
}
