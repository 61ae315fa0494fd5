package logger

import (
	"testing"

	"github.com/rxtech-lab/argo-charts/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type LoggerTestSuite struct {
	suite.Suite
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}

func (suite *LoggerTestSuite) TestNewLogger() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)
	suite.NotNil(logger.Logger)
}

func (suite *LoggerTestSuite) TestNewLoggerWithConfig() {
	logger, err := NewLoggerWithConfig("debug", true)
	suite.NoError(err)
	suite.NotNil(logger)
	suite.True(logger.Core().Enabled(zap.DebugLevel))
}

func (suite *LoggerTestSuite) TestNewLoggerWithConfigRespectsLevel() {
	logger, err := NewLoggerWithConfig("warn", false)
	suite.NoError(err)
	suite.False(logger.Core().Enabled(zap.InfoLevel))
	suite.True(logger.Core().Enabled(zap.WarnLevel))
}

func (suite *LoggerTestSuite) TestNewLoggerWithConfigInvalidLevel() {
	logger, err := NewLoggerWithConfig("loud", false)
	suite.Error(err)
	suite.Nil(logger)
	suite.Contains(err.Error(), "invalid log level")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *LoggerTestSuite) TestNopLogger() {
	logger := NewNopLogger()
	suite.NotNil(logger)

	// These should not panic
	logger.Info("test info message")
	logger.Named("child").Warn("test warn message")
}

func (suite *LoggerTestSuite) TestLoggerSync() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)

	// Sync may return an error on some systems (e.g., when syncing stdout)
	// but it should not panic
	_ = logger.Sync()
}

func (suite *LoggerTestSuite) TestLoggerSyncNilLogger() {
	logger := &Logger{Logger: nil}

	err := logger.Sync()
	suite.NoError(err)
}

func (suite *LoggerTestSuite) TestLoggerWithFields() {
	logger, err := NewLogger()
	suite.NoError(err)
	suite.NotNil(logger)

	// Should not panic
	logger.With(zap.String("symbol", "R_100")).Info("test message with fields")
}

func (suite *LoggerTestSuite) TestFromZapNamedWith() {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := FromZap(zap.New(core)).Named("chart").With(zap.String("session_id", "abc"))

	logger.Debug("subscribed", zap.String("id", "sub-1"))

	entries := logs.All()
	suite.Require().Len(entries, 1)
	suite.Equal("chart", entries[0].LoggerName)
	suite.Equal("subscribed", entries[0].Message)
	suite.Equal("abc", entries[0].ContextMap()["session_id"])
	suite.Equal("sub-1", entries[0].ContextMap()["id"])
}
