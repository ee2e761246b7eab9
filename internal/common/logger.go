package common

import (
	"os"

	"github.com/go-kratos/kratos/v2/log"
)

// NewLogger builds the process root logger. Every component takes a
// log.Logger in its constructor and derives its own helper from it.
func NewLogger(service, level string) log.Logger {
	base := log.With(log.NewStdLogger(os.Stdout),
		"ts", log.DefaultTimestamp,
		"caller", log.DefaultCaller,
		"service", service,
	)
	return log.NewFilter(base, log.FilterLevel(log.ParseLevel(level)))
}
