package telemetry

import "github.com/sirupsen/logrus"

// Logrus はlogrusに書き出すSink。
type Logrus struct {
	log *logrus.Logger
}

// NewLogrus はlogrusに書き出すSinkを生成する。
func NewLogrus(log *logrus.Logger) *Logrus {
	return &Logrus{log: log}
}

func (l *Logrus) Info(message string, meta map[string]any) {
	l.log.WithFields(logrus.Fields(meta)).Info(message)
}

func (l *Logrus) Warn(message string, meta map[string]any) {
	l.log.WithFields(logrus.Fields(meta)).Warn(message)
}

func (l *Logrus) Error(err error, meta map[string]any) {
	l.log.WithFields(logrus.Fields(meta)).WithError(err).Error(errorMessage(err))
}
