package ppp

import (
	"github.com/go-kit/kit/log"
	"github.com/go-kit/kit/log/level"
)

// nopLogger discards everything; used when a caller doesn't supply a
// logger rather than forcing a nil check at every call site.
func nopLogger() log.Logger {
	return log.NewNopLogger()
}

// withPrefix folds a stable component prefix ("mppe", "lcp:accm") into
// the logger's context, matching log_mppe_state/log_ppp_debug's plain
// prefixed strings in the original source while keeping go-kit's
// structured key/value pairs for the state dump itself.
func withPrefix(logger log.Logger, prefix string) log.Logger {
	return log.With(logger, "component", prefix)
}

func logDebug(logger log.Logger, msg string, kvs ...interface{}) {
	level.Debug(logger).Log(append([]interface{}{"msg", msg}, kvs...)...)
}

func logInfo(logger log.Logger, msg string, kvs ...interface{}) {
	level.Info(logger).Log(append([]interface{}{"msg", msg}, kvs...)...)
}

func logWarn(logger log.Logger, msg string, kvs ...interface{}) {
	level.Warn(logger).Log(append([]interface{}{"msg", msg}, kvs...)...)
}

func logError(logger log.Logger, msg string, kvs ...interface{}) {
	level.Error(logger).Log(append([]interface{}{"msg", msg}, kvs...)...)
}
