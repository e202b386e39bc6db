// Package sl содержит вспомогательные функции для работы с логгером slog.
// Основная цель: упростить формирование структурированных полей лога,
// например, для передачи информации об ошибках.
package sl

import (
	"io"
	"log/slog"
)

// Err возвращает slog.Attr с ключом "error" и значением текста ошибки.
// Удобно использовать в логировании для единообразного вывода ошибок.
//
// Пример:
//
//	log.Error("failed to do something", sl.Err(err))
func Err(err error) slog.Attr {
	return slog.Attr{
		Key:   "error",
		Value: slog.StringValue(err.Error()),
	}
}

// User возвращает slog.Attr с идентификатором пользователя.
func User(userID string) slog.Attr {
	return slog.String("user_id", userID)
}

// Cycle возвращает slog.Attr с ключом месячного цикла.
func Cycle(cycleKey string) slog.Attr {
	return slog.String("cycle_key", cycleKey)
}

// NewLogger создаёт логгер для окружения env: текстовый с уровнем debug
// для local, JSON с уровнем info для остальных.
func NewLogger(env string, w io.Writer) *slog.Logger {
	if env == "local" {
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo}))
}
