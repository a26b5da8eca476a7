package logger

// NopLogger discards everything. Used in tests.
type NopLogger struct{}

func NewNopLogger() *NopLogger {
	return &NopLogger{}
}

func (l *NopLogger) Debug(module string, message string, details map[string]interface{}) {}
func (l *NopLogger) Info(module string, message string, details map[string]interface{})  {}
func (l *NopLogger) Warn(module string, message string, details map[string]interface{})  {}
func (l *NopLogger) Error(module string, message string, details map[string]interface{}) {}
func (l *NopLogger) Sync() error                                                        { return nil }
