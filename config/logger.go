package config

import (
	"os"

	"github.com/sirupsen/logrus"
)

// NewLogger は設定されたレベルで logrus のロガーを生成します。
func NewLogger(level string) *logrus.Logger {
	logg := logrus.New()
	logg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	logg.SetOutput(os.Stdout)

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		logg.Warnf("unknown logLevel %q, using info", level)
		lvl = logrus.InfoLevel
	}
	logg.SetLevel(lvl)
	return logg
}

// LogError はモジュール名・関数名付きでエラーを記録します。
func LogError(logger logrus.FieldLogger, moduleName, funcName, context string, data any, err error) {
	fields := logrus.Fields{
		"module":   moduleName,
		"funcName": funcName,
		"context":  context,
	}
	if data != nil {
		fields["data"] = data
	}
	logger.WithFields(fields).Error(err.Error())
}
