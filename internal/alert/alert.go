package alert

import (
	"go.uber.org/zap"
)

// Notifier is the operational alerting collaborator. Workflow components
// receive it by injection instead of reaching for a global.
type Notifier interface {
	Info(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
	// Alarm reports a condition that needs operator attention (failed SMS
	// delivery, unreachable collaborator). It must never panic.
	Alarm(msg string, fields ...zap.Field)
}

// ZapNotifier routes alerts through a zap logger. Alarms are logged at
// error level with an alarm marker so the log shipper can fan them out.
type ZapNotifier struct {
	logger *zap.Logger
}

func NewZapNotifier(logger *zap.Logger) *ZapNotifier {
	return &ZapNotifier{logger: logger}
}

func (n *ZapNotifier) Info(msg string, fields ...zap.Field) {
	n.logger.Info(msg, fields...)
}

func (n *ZapNotifier) Error(msg string, fields ...zap.Field) {
	n.logger.Error(msg, fields...)
}

func (n *ZapNotifier) Alarm(msg string, fields ...zap.Field) {
	n.logger.Error(msg, append(fields, zap.Bool("alarm", true))...)
}

// Nop discards all alerts. Used in tests.
type Nop struct{}

func (Nop) Info(string, ...zap.Field)  {}
func (Nop) Error(string, ...zap.Field) {}
func (Nop) Alarm(string, ...zap.Field) {}
