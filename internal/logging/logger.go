package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"
)

// LogLevel определяет уровни логирования.
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
)

// String возвращает строковое представление уровня логирования.
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Logger — именованный по компоненту логгер с раздельными порогами для
// вывода в консоль и в файл (§6 ambient stack: каждый компонент движка —
// vault, checkpoint, store — получает свой файл под logs/).
type Logger struct {
	component string

	consoleLogger *log.Logger
	fileLogger    *log.Logger
	file          *os.File

	minConsoleLevel LogLevel
	minFileLevel    LogLevel
}

var defaultLogger *Logger

// NewLogger создаёт логгер для component, открывая
// logs/<component>_<timestamp>.log.
func NewLogger(component string) (*Logger, error) {
	if err := os.MkdirAll("logs", 0o755); err != nil {
		return nil, fmt.Errorf("ошибка создания директории logs: %w", err)
	}

	timestamp := time.Now().Format("2006-01-02_15-04-05")
	filename := filepath.Join("logs", fmt.Sprintf("%s_%s.log", component, timestamp))

	file, err := os.OpenFile(filename, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o666)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания файла логов %s: %w", component, err)
	}

	return &Logger{
		component:       component,
		consoleLogger:   log.New(os.Stdout, fmt.Sprintf("[%s] ", component), log.LstdFlags),
		fileLogger:      log.New(file, fmt.Sprintf("[%s] ", component), log.LstdFlags),
		file:            file,
		minConsoleLevel: INFO,
		minFileLevel:    TRACE,
	}, nil
}

// Close закрывает файловый дескриптор логгера.
func (l *Logger) Close() error {
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func (l *Logger) log(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf("[%s] %s", level, fmt.Sprintf(format, args...))

	if l.fileLogger != nil && level >= l.minFileLevel {
		l.fileLogger.Println(message)
	}
	if l.consoleLogger != nil && level >= l.minConsoleLevel {
		l.consoleLogger.Println(message)
	}
}

func (l *Logger) Trace(format string, args ...interface{}) { l.log(TRACE, format, args...) }
func (l *Logger) Debug(format string, args ...interface{}) { l.log(DEBUG, format, args...) }
func (l *Logger) Info(format string, args ...interface{})  { l.log(INFO, format, args...) }
func (l *Logger) Warn(format string, args ...interface{})  { l.log(WARN, format, args...) }
func (l *Logger) Error(format string, args ...interface{}) { l.log(ERROR, format, args...) }

// InitLogger готовит логгер процесса по умолчанию — используется
// cmd-бинарниками, которым не нужна многокомпонентная разбивка.
func InitLogger() error {
	logger, err := NewLogger("pebblevault")
	if err != nil {
		return err
	}
	defaultLogger = logger
	return nil
}

// CloseLogger закрывает логгер по умолчанию.
func CloseLogger() {
	if defaultLogger != nil {
		defaultLogger.Close()
	}
}

func LogTrace(format string, args ...interface{}) { logDefault(TRACE, format, args...) }
func LogDebug(format string, args ...interface{}) { logDefault(DEBUG, format, args...) }
func LogInfo(format string, args ...interface{})  { logDefault(INFO, format, args...) }
func LogWarn(format string, args ...interface{})  { logDefault(WARN, format, args...) }
func LogError(format string, args ...interface{}) { logDefault(ERROR, format, args...) }

func logDefault(level LogLevel, format string, args ...interface{}) {
	if defaultLogger == nil {
		return
	}
	defaultLogger.log(level, format, args...)
}
