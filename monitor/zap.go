package monitor

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/airsstack/overseer"
)

// Zap logs every event with a level derived from its severity.
type Zap struct {
	logger *zap.Logger
}

// NewZap returns a monitor that logs to logger. A nil logger uses zap.L().
func NewZap(logger *zap.Logger) *Zap {
	if logger == nil {
		logger = zap.L()
	}
	return &Zap{logger: logger.Named("events")}
}

func (z *Zap) Record(e overseer.SupervisionEvent) {
	ce := z.logger.Check(levelOf(e.Severity()), e.Kind.String())
	if ce == nil {
		return
	}

	fields := []zap.Field{
		zap.String("supervisor", e.SupervisorName),
		zap.String("supervisor_id", e.SupervisorID),
	}
	if e.ChildID != "" {
		fields = append(fields,
			zap.String("child", string(e.ChildID)),
			zap.Stringer("old_state", e.OldState),
			zap.Stringer("new_state", e.NewState),
			zap.Int("restarts", e.RestartCount),
		)
	}
	if e.Decision != nil {
		fields = append(fields,
			zap.Stringer("strategy", e.Decision.Strategy),
			zap.Any("affected", e.Decision.Affected),
		)
	}
	if e.Cause != nil {
		fields = append(fields, zap.Error(e.Cause))
	}
	ce.Write(fields...)
}

func levelOf(s overseer.Severity) zapcore.Level {
	switch s {
	case overseer.SeverityWarning:
		return zapcore.WarnLevel
	case overseer.SeverityError, overseer.SeverityCritical:
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}
