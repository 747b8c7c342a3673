// Package logging provides structured logging using uber/zap.
//
// Production mode writes JSON for machine parsing; development mode writes
// colored console output. Components receive a *zap.Logger and name
// themselves:
//
//	logger := logging.NewDefault()
//	bridgeLog := logger.Named("bridge")
//	pluginLog := logger.ForPlugin("todo")
//	pluginLog.Info("script loaded", zap.Duration("took", d))
package logging
