// Package infrastructure provides reusable infrastructure components for Go applications.
package infrastructure

import (
	"fmt"
	"strings"

	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// FxLoggerAdapter routes Fx lifecycle events into a zap.Logger as structured
// entries. Routine dependency graph events are logged at debug level; hook
// failures, rollbacks and start/stop outcomes are logged at info or error.
type FxLoggerAdapter struct {
	logger *zap.Logger
}

// NewFxLoggerAdapter creates a new Fx logger adapter that implements fxevent.Logger.
func NewFxLoggerAdapter(logger *zap.Logger) fxevent.Logger {
	return &FxLoggerAdapter{logger: logger.Named("fx")}
}

// LogEvent implements fxevent.Logger.
func (p *FxLoggerAdapter) LogEvent(event fxevent.Event) {
	switch e := event.(type) {
	case *fxevent.OnStartExecuting:
		p.logger.Debug("OnStart hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStartExecuted:
		p.hookResult("OnStart", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.OnStopExecuting:
		p.logger.Debug("OnStop hook executing",
			zap.String("callee", e.FunctionName),
			zap.String("caller", e.CallerName))
	case *fxevent.OnStopExecuted:
		p.hookResult("OnStop", e.FunctionName, e.CallerName, e.Runtime.String(), e.Err)
	case *fxevent.Supplied:
		p.withError("supplied", e.Err, zap.String("type", e.TypeName), moduleField(e.ModuleName))
	case *fxevent.Provided:
		p.withError("provided", e.Err,
			zap.String("constructor", e.ConstructorName),
			zap.String("types", strings.Join(e.OutputTypeNames, ", ")),
			moduleField(e.ModuleName))
	case *fxevent.Invoking:
		p.logger.Debug("invoking", zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Invoked:
		p.withError("invoked", e.Err, zap.String("function", e.FunctionName), moduleField(e.ModuleName))
	case *fxevent.Stopping:
		p.logger.Info("received signal", zap.String("signal", strings.ToUpper(e.Signal.String())))
	case *fxevent.Stopped:
		p.outcome("stopped", e.Err)
	case *fxevent.RollingBack:
		p.logger.Error("start failed, rolling back", zap.Error(e.StartErr))
	case *fxevent.RolledBack:
		p.outcome("rolled back", e.Err)
	case *fxevent.Started:
		p.outcome("started", e.Err)
	case *fxevent.LoggerInitialized:
		p.withError("initialized custom fxevent.Logger", e.Err, zap.String("function", e.ConstructorName))
	default:
		p.logger.Debug("unhandled fx event", zap.String("event", typeName(event)))
	}
}

func (p *FxLoggerAdapter) hookResult(hook, callee, caller, runtime string, err error) {
	if err != nil {
		p.logger.Error(hook+" hook failed",
			zap.String("callee", callee),
			zap.String("caller", caller),
			zap.Error(err))
		return
	}
	p.logger.Debug(hook+" hook executed",
		zap.String("callee", callee),
		zap.String("caller", caller),
		zap.String("runtime", runtime))
}

func (p *FxLoggerAdapter) withError(msg string, err error, fields ...zap.Field) {
	if err != nil {
		p.logger.Error(msg+" with error", append(fields, zap.Error(err))...)
		return
	}
	p.logger.Debug(msg, fields...)
}

func (p *FxLoggerAdapter) outcome(msg string, err error) {
	if err != nil {
		p.logger.Error(msg+" with error", zap.Error(err))
		return
	}
	p.logger.Info(msg)
}

func moduleField(name string) zap.Field {
	if name == "" {
		return zap.Skip()
	}
	return zap.String("module", name)
}

func typeName(v any) string {
	return strings.TrimPrefix(fmt.Sprintf("%T", v), "*fxevent.")
}
