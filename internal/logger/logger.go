package logger

import "go.uber.org/zap"

// New builds the process logger. Development mode uses the console
// encoder, everything else the production JSON encoder.
func New(development bool) (*zap.Logger, error) {
	if development {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
