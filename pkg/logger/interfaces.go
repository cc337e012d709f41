package logger

// Logger is the structured logging contract shared by every capflow package.
// Fields are passed as a map so call sites read the same regardless of backend.
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, fields map[string]interface{})
	SetLevel(level string)
	With(fields map[string]interface{}) Logger
}

// Format selects the encoder used by NewZapLogger.
type Format string

const (
	FormatJSON  Format = "json"
	FormatHuman Format = "human"
)

// Options configure a zap-backed Logger.
type Options struct {
	Level  string
	Format Format
	// OutputPaths defaults to stdout.
	OutputPaths []string
	Component   string
}

// NoOpLogger discards everything. Used when callers do not inject a logger.
type NoOpLogger struct{}

func (NoOpLogger) Debug(string, map[string]interface{}) {}
func (NoOpLogger) Info(string, map[string]interface{})  {}
func (NoOpLogger) Warn(string, map[string]interface{})  {}
func (NoOpLogger) Error(string, map[string]interface{}) {}
func (NoOpLogger) SetLevel(string)                      {}
func (n NoOpLogger) With(map[string]interface{}) Logger { return n }

// OrNoOp returns l, or a NoOpLogger when l is nil.
func OrNoOp(l Logger) Logger {
	if l == nil {
		return NoOpLogger{}
	}
	return l
}
