package logging

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLoggerProvider 将日志转发给 zap
type ZapLoggerProvider struct {
	base  *zap.Logger
	level zap.AtomicLevel
}

// NewZapLoggerProvider 创建 zap 日志提供者。base 为 nil 时创建输出 JSON 到标准输出的生产配置 logger。
func NewZapLoggerProvider(base *zap.Logger) *ZapLoggerProvider {
	level := zap.NewAtomicLevelAt(zapcore.InfoLevel)
	if base == nil {
		core := zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(os.Stdout),
			level,
		)
		base = zap.New(core, zap.AddCaller(), zap.AddCallerSkip(2))
	}
	return &ZapLoggerProvider{base: base, level: level}
}

func (p *ZapLoggerProvider) CreateLogger(category string) Logger {
	base := p.base
	if category != "" {
		base = base.Named(category)
	}
	return &zapLogger{zap: base, level: p.level}
}

func (p *ZapLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.SetLevel(toZapLevel(level))
}

// Close 刷新 zap 的缓冲
func (p *ZapLoggerProvider) Close() error {
	// 标准输出在部分平台上 Sync 会返回 EINVAL，忽略
	_ = p.base.Sync()
	return nil
}

type zapLogger struct {
	zap   *zap.Logger
	level zap.AtomicLevel
}

func (l *zapLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *zapLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *zapLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *zapLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *zapLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *zapLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	_ = l.zap.Sync()
	os.Exit(1)
}

func (l *zapLogger) Log(level LogLevel, msg string, fields ...Field) {
	if ce := l.zap.Check(toZapLevel(level), msg); ce != nil {
		ce.Write(toZapFields(fields)...)
	}
}

func (l *zapLogger) WithFields(fields ...Field) Logger {
	return &zapLogger{zap: l.zap.With(toZapFields(fields)...), level: l.level}
}

func (l *zapLogger) WithCategory(category string) Logger {
	return &zapLogger{zap: l.zap.Named(category), level: l.level}
}

// toZapLevel 映射日志级别。Fatal 映射为 Error，由调用方负责退出进程。
func toZapLevel(level LogLevel) zapcore.Level {
	switch level {
	case LogLevelTrace, LogLevelDebug:
		return zapcore.DebugLevel
	case LogLevelInfo:
		return zapcore.InfoLevel
	case LogLevelWarn:
		return zapcore.WarnLevel
	default:
		return zapcore.ErrorLevel
	}
}

func toZapFields(fields []Field) []zap.Field {
	out := make([]zap.Field, len(fields))
	for i, f := range fields {
		if err, ok := f.Value.(error); ok {
			out[i] = zap.NamedError(f.Key, err)
			continue
		}
		out[i] = zap.Any(f.Key, f.Value)
	}
	return out
}
