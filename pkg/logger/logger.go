package logger

import (
	"go.uber.org/zap"
)

// New builds the application logger. Development environments get the
// human-readable console encoder, everything else gets JSON.
func New(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
