package logging

import (
	"go.uber.org/zap"

	"github.com/linuxmatters/mediactl/internal/engine"
	"github.com/linuxmatters/mediactl/internal/events"
)

// Publisher is the part of the event bus the reporter needs.
type Publisher interface {
	Emit(ev events.Event)
}

// Reporter is the single sink for failures that are recovered instead of
// returned. Engine failures log at Warn, anything else at Error.
type Reporter struct {
	log    *zap.Logger
	pub    Publisher
	source string
}

// NewReporter logs to log and, when pub is non-nil, publishes failure events.
func NewReporter(log *zap.Logger, pub Publisher) *Reporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Reporter{log: log, pub: pub}
}

// ForSource returns a reporter that tags everything with source.
func (r *Reporter) ForSource(source string) *Reporter {
	return &Reporter{
		log:    r.log.With(zap.String("source", source)),
		pub:    r.pub,
		source: source,
	}
}

func (r *Reporter) Report(op string, err error) {
	if err == nil {
		return
	}

	kind := "caller"
	if engine.IsEngineError(err) {
		kind = engine.KindOf(err).String()
		r.log.Warn("engine call failed", zap.String("op", op), zap.String("kind", kind), zap.Error(err))
	} else {
		r.log.Error("operation failed", zap.String("op", op), zap.Error(err))
	}

	if r.pub != nil {
		r.pub.Emit(events.Event{
			Type:   events.TypeFailure,
			Source: r.source,
			Op:     op,
			Kind:   kind,
			Error:  err.Error(),
		})
	}
}

var _ engine.Reporter = (*Reporter)(nil)
