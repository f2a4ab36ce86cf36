package logging

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestTextFormatter(t *testing.T) {
	f := NewTextFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelInfo,
		Category: "Test",
		Message:  "Hello",
		Fields:   []Field{{Key: "key", Value: "val"}},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	str := string(out)
	for _, want := range []string{"INFO", "[Test]", "Hello", "{key=val}"} {
		if !strings.Contains(str, want) {
			t.Errorf("expected %q in %q", want, str)
		}
	}
	if !strings.HasSuffix(str, "\n") {
		t.Error("expected trailing newline")
	}
}

func TestJsonFormatter(t *testing.T) {
	f := NewJsonFormatter()
	entry := &LogEntry{
		Time:     time.Now(),
		Level:    LogLevelWarn,
		Category: "Test",
		Message:  "Hello",
		Fields: []Field{
			{Key: "key", Value: "val"},
			{Key: "error", Value: errors.New("boom")},
		},
	}

	out, err := f.Format(entry)
	if err != nil {
		t.Fatalf("Format failed: %v", err)
	}

	var data map[string]any
	if err := json.Unmarshal(out, &data); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if data["level"] != "WARN" {
		t.Errorf("level = %v", data["level"])
	}
	if data["category"] != "Test" {
		t.Errorf("category = %v", data["category"])
	}
	fields, ok := data["fields"].(map[string]any)
	if !ok {
		t.Fatal("expected fields map")
	}
	if fields["key"] != "val" || fields["error"] != "boom" {
		t.Errorf("fields = %v", fields)
	}
}

func TestAsyncWriter(t *testing.T) {
	writer := &syncWriter{}
	asyncWriter := NewAsyncWriter(writer, NewJsonFormatter(), 2)

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Async"}
	for i := 0; i < 5; i++ {
		asyncWriter.WriteLog(entry)
	}
	if err := asyncWriter.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	// 关闭后写入被丢弃
	asyncWriter.WriteLog(entry)

	lines := strings.Split(strings.TrimSpace(writer.String()), "\n")
	if len(lines) != 5 {
		t.Errorf("expected 5 lines, got %d", len(lines))
	}
}

func TestConsoleLoggerLevels(t *testing.T) {
	out := &syncWriter{}
	factory := NewLoggingBuilder().
		SetMinimumLevel(LogLevelWarn).
		AddConsole(ConsoleLoggerOptions{Output: out}).
		Build()

	logger := factory.CreateLogger("Orders").WithFields(Field{Key: "tenant", Value: "acme"})
	logger.Info("hidden")
	logger.Warn("shown", Field{Key: "id", Value: 7})

	got := out.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info should be filtered: %q", got)
	}
	if !strings.Contains(got, "WARN [Orders] shown {tenant=acme, id=7}") {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestWithFieldsDoesNotLeak(t *testing.T) {
	out := &syncWriter{}
	base := NewLoggingBuilder().AddConsole(ConsoleLoggerOptions{Output: out}).Build().CreateLogger("")

	a := base.WithFields(Field{Key: "a", Value: 1})
	_ = a.WithFields(Field{Key: "b", Value: 2})
	a.Info("only-a")

	if got := out.String(); strings.Contains(got, "b=2") {
		t.Errorf("fields leaked between children: %q", got)
	}
}

func TestFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	factory, err := NewFactory(Options{Level: "debug", File: path, JSON: true})
	if err != nil {
		t.Fatalf("NewFactory failed: %v", err)
	}
	// 未启用 Console 但设置了 File，不会额外输出到控制台
	logger := factory.CreateLogger("File")
	logger.Debug("to-file", Field{Key: "n", Value: 1})
	if err := factory.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	var line map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &line); err != nil {
		t.Fatalf("invalid json line %q: %v", data, err)
	}
	if line["msg"] != "to-file" || line["level"] != "DEBUG" {
		t.Errorf("unexpected line: %v", line)
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":        LogLevelInfo,
		"DEBUG":   LogLevelDebug,
		"warning": LogLevelWarn,
		" error ": LogLevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		if err != nil || got != want {
			t.Errorf("ParseLevel(%q) = %v, %v", in, got, err)
		}
	}
	if _, err := NewFactory(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestZapProvider(t *testing.T) {
	p := NewZapLoggerProvider(nil)
	p.SetMinimumLevel(LogLevelError)
	logger := p.CreateLogger("zap").WithFields(Field{Key: "k", Value: "v"})
	// 低于最小级别的日志不会写出，这里只验证调用链不会 panic
	logger.Info("filtered")
	logger.WithCategory("child").Debug("filtered")
	if err := p.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
}

func TestNop(t *testing.T) {
	l := Nop().WithCategory("x").WithFields(Field{Key: "a", Value: 1})
	l.Error("ignored")
}

type syncWriter struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (w *syncWriter) Write(p []byte) (n int, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Write(p)
}

func (w *syncWriter) String() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.String()
}

func BenchmarkAsyncLogging(b *testing.B) {
	asyncWriter := NewAsyncWriter(io.Discard, NewTextFormatter(), 10000)
	defer asyncWriter.Close()

	entry := &LogEntry{Time: time.Now(), Level: LogLevelInfo, Message: "Benchmark"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		asyncWriter.WriteLog(entry)
	}
}
