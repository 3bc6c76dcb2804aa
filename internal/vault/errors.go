package vault

import "fmt"

// Kind классифицирует ошибки движка по семантике из §7 спецификации.
type Kind int

const (
	// InvalidArgument — некорректные входные данные: нефинитные координаты,
	// неположительный радиус, совпадающие регионы в transfer.
	InvalidArgument Kind = iota
	// NotFound — неизвестный регион или объект.
	NotFound
	// Conflict — UUID уже присутствует в менеджере (в любом регионе, в том
	// числе в том же) на момент вставки.
	Conflict
	// StoreIO — ошибка чтения/записи BackingStore.
	StoreIO
	// Corruption — запись из стора не соответствует схеме либо ссылается на
	// отсутствующий blob.
	Corruption
	// Transient — таймаут захвата блокировки; вызывающая сторона может
	// повторить операцию.
	Transient
)

func (k Kind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case NotFound:
		return "NotFound"
	case Conflict:
		return "Conflict"
	case StoreIO:
		return "StoreIO"
	case Corruption:
		return "Corruption"
	case Transient:
		return "Transient"
	default:
		return "Unknown"
	}
}

// Error — единый тип ошибок движка, несущий семантический Kind и, опционально,
// исходную причину.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap позволяет errors.Is/errors.As видеть обёрнутую причину.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is сообщает, относится ли ошибка к данному Kind.
func Is(err error, kind Kind) bool {
	ve, ok := err.(*Error)
	return ok && ve.Kind == kind
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func wrapErr(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}
