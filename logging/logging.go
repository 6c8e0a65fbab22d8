// Package logging provides the zap logger construction this module's
// components share, the same "build once in main, pass *zap.Logger down
// through constructors" pattern the teacher's bus/inv/peer packages use
// for their fmt.Printf calls, generalized to structured logging.
package logging

import "go.uber.org/zap"

// New builds a production logger, or a development logger with a nicer
// console encoder when dev is true.
func New(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Nop returns a logger that discards everything, the default for tests
// and any constructor invoked without an explicit logger.
func Nop() *zap.Logger {
	return zap.NewNop()
}
