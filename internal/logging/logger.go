package logging

import (
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a JSON logger for production and a colored console logger otherwise.
func New(production bool) (*zap.Logger, error) {
	var config zap.Config
	if production {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	return config.Build()
}

var scrubber = strings.NewReplacer("₦", "NGN")

// Scrub makes text from sheet cells ASCII-safe for log sinks.
func Scrub(s string) string {
	return scrubber.Replace(s)
}

// Err is zap.Error with the message scrubbed.
func Err(err error) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.String("error", Scrub(err.Error()))
}
