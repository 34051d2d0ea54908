package engine

import "context"

// Boundary operation names, used in errors, spans and log fields.
const (
	OpCreateSession       = "createSession"
	OpAttach              = "attach"
	OpApplyGains          = "applyGains"
	OpApplyAggressiveness = "applyAggressiveness"
	OpApplyZoom           = "applyZoom"
	OpApplyExposure       = "applyExposure"
	OpPrepareExport       = "prepareExport"
	OpDestroySession      = "destroySession"
	OpSubscribe           = "subscribe"
)

// Engine is the asynchronous command/response boundary to the native media
// engine. Implementations must honour ctx and return *Error values (or
// ErrUnavailable) rather than panicking.
type Engine interface {
	CreateSession(ctx context.Context, source SourceRef) (SessionID, error)
	Attach(ctx context.Context, id SessionID, target TargetRef) error
	ApplyGains(ctx context.Context, id SessionID, gains GainVector) error
	ApplyAggressiveness(ctx context.Context, id SessionID, level float64) error
	ApplyZoom(ctx context.Context, id SessionID, zoom float64) error
	ApplyExposure(ctx context.Context, id SessionID, exposure float64) error
	PrepareExport(ctx context.Context, id SessionID, cfg ExportConfig) (ExportHandle, error)
	// DestroySession is idempotent and best-effort.
	DestroySession(ctx context.Context, id SessionID) error
	// Subscribe streams level samples and telemetry for a session until ctx
	// is cancelled; the returned channel is then closed.
	Subscribe(ctx context.Context, id SessionID) (<-chan Event, error)
}

// Reporter receives failures that are recovered locally instead of being
// returned to the caller.
type Reporter interface {
	Report(op string, err error)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(op string, err error)

// Report calls f.
func (f ReporterFunc) Report(op string, err error) { f(op, err) }

// NopReporter discards reports.
var NopReporter Reporter = ReporterFunc(func(string, error) {})
