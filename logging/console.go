package logging

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// ConsoleLoggerOptions 控制台日志选项
type ConsoleLoggerOptions struct {
	IncludeTimestamp bool
	TimestampFormat  string
	ColorOutput      bool
	// JSON 为 true 时每行输出一个 JSON 对象
	JSON   bool
	Output io.Writer
}

// ConsoleLoggerProvider 控制台日志提供者，同步写入 Output
type ConsoleLoggerProvider struct {
	out       *lockedWriter
	formatter Formatter
	level     atomic.Int32
}

// NewConsoleLoggerProvider 创建控制台日志提供者
func NewConsoleLoggerProvider(options ConsoleLoggerOptions) *ConsoleLoggerProvider {
	if options.Output == nil {
		options.Output = os.Stdout
	}

	var formatter Formatter
	if options.JSON {
		formatter = NewJsonFormatter()
	} else {
		formatter = &TextFormatter{
			IncludeTimestamp: options.IncludeTimestamp,
			TimestampFormat:  options.TimestampFormat,
			ColorOutput:      options.ColorOutput,
		}
	}

	p := &ConsoleLoggerProvider{
		out:       &lockedWriter{w: options.Output},
		formatter: formatter,
	}
	p.level.Store(int32(LogLevelInfo))
	return p
}

func (p *ConsoleLoggerProvider) CreateLogger(category string) Logger {
	return &entryLogger{
		category: category,
		level:    &p.level,
		sink: func(entry *LogEntry) {
			data, err := p.formatter.Format(entry)
			if err != nil {
				return
			}
			_, _ = p.out.Write(data)
		},
	}
}

func (p *ConsoleLoggerProvider) SetMinimumLevel(level LogLevel) {
	p.level.Store(int32(level))
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (w *lockedWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.w.Write(p)
}

// entryLogger 把调用转换为 LogEntry 交给 sink，控制台与文件提供者共用
type entryLogger struct {
	category string
	fields   []Field
	level    *atomic.Int32
	sink     func(*LogEntry)
}

func (l *entryLogger) Trace(msg string, fields ...Field) {
	l.Log(LogLevelTrace, msg, fields...)
}

func (l *entryLogger) Debug(msg string, fields ...Field) {
	l.Log(LogLevelDebug, msg, fields...)
}

func (l *entryLogger) Info(msg string, fields ...Field) {
	l.Log(LogLevelInfo, msg, fields...)
}

func (l *entryLogger) Warn(msg string, fields ...Field) {
	l.Log(LogLevelWarn, msg, fields...)
}

func (l *entryLogger) Error(msg string, fields ...Field) {
	l.Log(LogLevelError, msg, fields...)
}

func (l *entryLogger) Fatal(msg string, fields ...Field) {
	l.Log(LogLevelFatal, msg, fields...)
	os.Exit(1)
}

func (l *entryLogger) Log(level LogLevel, msg string, fields ...Field) {
	if level < LogLevel(l.level.Load()) {
		return
	}
	l.sink(&LogEntry{
		Time:     time.Now(),
		Level:    level,
		Category: l.category,
		Message:  msg,
		Fields:   mergeFields(l.fields, fields),
	})
}

func (l *entryLogger) WithFields(fields ...Field) Logger {
	return &entryLogger{
		category: l.category,
		fields:   mergeFields(l.fields, fields),
		level:    l.level,
		sink:     l.sink,
	}
}

func (l *entryLogger) WithCategory(category string) Logger {
	return &entryLogger{
		category: category,
		fields:   l.fields,
		level:    l.level,
		sink:     l.sink,
	}
}
