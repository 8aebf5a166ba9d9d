package logger

import (
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Log *zap.Logger

func init() {
	// 未 Init 时是 Nop, 单测里不打日志
	Log = zap.NewNop()
}

type options struct {
	level  string
	fields []zap.Field
	stderr bool
}

type Option func(*options)

// WithLevel debug/info/warn/error, 空串用环境默认
func WithLevel(level string) Option {
	return func(o *options) { o.level = level }
}

// WithFields 每条日志都带上, 比如 network
func WithFields(fields ...zap.Field) Option {
	return func(o *options) { o.fields = append(o.fields, fields...) }
}

// ToStderr CLI 用, stdout 留给 JSON 输出
func ToStderr() Option {
	return func(o *options) { o.stderr = true }
}

// Init production 用 JSON + ISO8601, 其他环境用彩色 console
func Init(env string, opts ...Option) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	var cfg zap.Config
	if env == "production" {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	} else {
		cfg = zap.NewDevelopmentConfig()
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	if o.level != "" {
		lvl, err := zap.ParseAtomicLevel(o.level)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid log level %q, keeping %s\n", o.level, cfg.Level.String())
		} else {
			cfg.Level = lvl
		}
	}
	if o.stderr {
		cfg.OutputPaths = []string{"stderr"}
	}

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic(err)
	}
	Log = l.With(o.fields...)
	zap.ReplaceGlobals(Log)
}

func Sync() {
	_ = Log.Sync()
}

func Info(msg string, fields ...zap.Field)  { Log.Info(msg, fields...) }
func Warn(msg string, fields ...zap.Field)  { Log.Warn(msg, fields...) }
func Error(msg string, fields ...zap.Field) { Log.Error(msg, fields...) }
func Fatal(msg string, fields ...zap.Field) { Log.Fatal(msg, fields...) }
func Debug(msg string, fields ...zap.Field) { Log.Debug(msg, fields...) }

// AsynqLogger 把 asynq 内部日志转到 zap, 带 component=asynq
type AsynqLogger struct {
	sugar *zap.SugaredLogger
}

func NewAsynqLogger() *AsynqLogger {
	return &AsynqLogger{sugar: Log.WithOptions(zap.AddCallerSkip(1)).Sugar().With("component", "asynq")}
}

func (l *AsynqLogger) Debug(args ...interface{}) { l.sugar.Debug(fmt.Sprint(args...)) }
func (l *AsynqLogger) Info(args ...interface{})  { l.sugar.Info(fmt.Sprint(args...)) }
func (l *AsynqLogger) Warn(args ...interface{})  { l.sugar.Warn(fmt.Sprint(args...)) }
func (l *AsynqLogger) Error(args ...interface{}) { l.sugar.Error(fmt.Sprint(args...)) }
func (l *AsynqLogger) Fatal(args ...interface{}) { l.sugar.Fatal(fmt.Sprint(args...)) }
