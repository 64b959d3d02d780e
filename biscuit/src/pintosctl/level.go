package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

func parseLevel(s string) (logrus.Level, error) {
	switch s {
	case "debug":
		return logrus.DebugLevel, nil
	case "info":
		return logrus.InfoLevel, nil
	case "warn":
		return logrus.WarnLevel, nil
	default:
		return 0, fmt.Errorf("pintosctl: unknown log-level %q", s)
	}
}
