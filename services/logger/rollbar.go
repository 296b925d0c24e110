package logsvc

import (
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"

	"github.com/trezcool/ratiba/core"
)

// RollbarLogger reports to Rollbar (when enabled) and writes structured logs with zap.
type RollbarLogger struct {
	zap     *zap.Logger
	enabled bool
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zap: zl}
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *RollbarLogger {
	return &RollbarLogger{zap: zap.NewNop()}
}

// NewZap builds the zap logger used underneath: development output in debug mode, JSON otherwise.
func NewZap(conf *core.Config, name string) (*zap.Logger, error) {
	var (
		zl  *zap.Logger
		err error
	)
	if conf.Debug {
		zl, err = zap.NewDevelopment()
	} else {
		zl, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	return zl.Named(name).With(zap.String("env", conf.Env), zap.String("build", conf.Build)), nil
}

func (l *RollbarLogger) Enable(enabled bool) {
	l.enabled = enabled
	rollbar.SetEnabled(enabled)
}

// Zap exposes the underlying zap logger.
func (l *RollbarLogger) Zap() *zap.Logger {
	return l.zap
}

// expected fmt: msg | error, map[string]interface{}, core.Identity
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var idSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]zap.Field, 0, len(args))
	for i, arg := range args {
		switch a := arg.(type) {
		case core.Identity:
			if !idSet { // only set one Identity
				if l.enabled {
					rollbar.SetPerson(a.ID, a.Username, a.Email)
				}
				fields = append(fields, zap.String("user_id", a.ID), zap.String("school_id", a.SchoolID))
				idSet = true
			}
			continue
		case error:
			fields = append(fields, zap.Error(a))
		case map[string]interface{}:
			for k, v := range a {
				fields = append(fields, zap.Any(k, v))
			}
		default:
			fields = append(fields, zap.Any(fmt.Sprintf("arg%d", i), a))
		}
		rbArgs = append(rbArgs, arg)
	}
	if !idSet && l.enabled {
		rollbar.ClearPerson()
	}
	return rbArgs, fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if l.enabled {
		rollbar.Debug(rbArgs...)
	}
	l.zap.Debug(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if l.enabled {
		rollbar.Info(rbArgs...)
	}
	l.zap.Info(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if l.enabled {
		rollbar.Warning(rbArgs...)
	}
	l.zap.Warn(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if l.enabled {
		rollbar.Error(rbArgs...)
	}
	l.zap.Error(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	if l.enabled {
		rollbar.Critical(rbArgs...)
		rollbar.Wait()
	}
	l.zap.Fatal(msg, fields...)
}
