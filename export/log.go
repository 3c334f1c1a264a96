package export

import "go.uber.org/zap"

// The package logger defaults to a nop so the library stays silent unless the
// embedding program opts in.
var logger = zap.NewNop().Sugar()

// SetLogger routes this package's diagnostics through the given logger.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		logger = l
	}
}
