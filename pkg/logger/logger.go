// Package logger 提供统一的日志框架
package logger

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	once   sync.Once
	logger zerolog.Logger
)

type ctxKey string

// RequestIDKey 请求ID在上下文中的键
const RequestIDKey ctxKey = "request_id"

// Config 日志配置
type Config struct {
	Level      string // debug/info/warn/error
	Format     string // json/console
	Output     string // stdout/stderr
	TimeFormat string
}

// Init 初始化全局日志器，只有第一次调用生效
func Init(cfg Config) {
	once.Do(func() {
		zerolog.SetGlobalLevel(parseLevel(cfg.Level))

		var out io.Writer = os.Stdout
		if cfg.Output == "stderr" {
			out = os.Stderr
		}
		logger = newLogger(cfg, out)
	})
}

func newLogger(cfg Config, out io.Writer) zerolog.Logger {
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: cfg.TimeFormat}
	}
	return zerolog.New(out).With().Timestamp().Logger()
}

func parseLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	}
	return zerolog.InfoLevel
}

// Get 获取日志器，未初始化时使用 info 级别 JSON 输出
func Get() *zerolog.Logger {
	Init(Config{Level: "info", Format: "json"})
	return &logger
}

// WithContext 附带请求ID的日志器
func WithContext(ctx context.Context) *zerolog.Logger {
	l := Get().With().Logger()
	if reqID, ok := ctx.Value(RequestIDKey).(string); ok {
		l = l.With().Str("request_id", reqID).Logger()
	}
	return &l
}

// Info 记录信息日志
func Info() *zerolog.Event {
	return Get().Info()
}

// Warn 记录警告日志
func Warn() *zerolog.Event {
	return Get().Warn()
}

// Error 记录错误日志
func Error() *zerolog.Event {
	return Get().Error()
}

// Fatal 记录致命错误日志
func Fatal() *zerolog.Event {
	return Get().Fatal()
}

// SchedulerLogger 课表引擎专用日志器
type SchedulerLogger struct {
	base *zerolog.Logger
}

// NewSchedulerLogger 创建课表引擎日志器
func NewSchedulerLogger() *SchedulerLogger {
	l := Get().With().Str("component", "scheduler").Logger()
	return &SchedulerLogger{base: &l}
}

// StartGeneration 记录课表生成开始
func (l *SchedulerLogger) StartGeneration(runID string, divisions, sessions int) {
	l.base.Info().
		Str("run_id", runID).
		Int("divisions", divisions).
		Int("sessions", sessions).
		Msg("开始生成课表")
}

// SessionUnplaceable 记录无法安排的课时
func (l *SchedulerLogger) SessionUnplaceable(division, subject, batch string, err error) {
	l.base.Warn().
		Err(err).
		Str("division", division).
		Str("subject", subject).
		Str("batch", batch).
		Msg("课时无法安排")
}

// GenerationComplete 记录课表生成完成
func (l *SchedulerLogger) GenerationComplete(runID string, duration time.Duration, placed, unplaced int) {
	l.base.Info().
		Str("run_id", runID).
		Dur("duration", duration).
		Int("placed", placed).
		Int("unplaced", unplaced).
		Msg("课表生成完成")
}

// ConflictsDetected 记录冲突检测结果
func (l *SchedulerLogger) ConflictsDetected(total int, byType map[string]int) {
	ev := l.base.Info().Int("total", total)
	for k, v := range byType {
		ev = ev.Int(k, v)
	}
	ev.Msg("冲突检测完成")
}

// ResolutionApplied 记录冲突处理结果
func (l *SchedulerLogger) ResolutionApplied(index int, action, state string, err error) {
	ev := l.base.Info()
	if err != nil {
		ev = l.base.Warn().Err(err)
	}
	ev.Int("index", index).
		Str("action", action).
		Str("state", state).
		Msg("冲突处理")
}
