package models

import (
	"errors"
	"fmt"
)

// Ошибки доменного уровня. Вызывающая сторона различает их через errors.Is.
var (
	// ErrValidation: некорректные входные данные, состояние не изменялось.
	ErrValidation = errors.New("validation error")
	// ErrStateConflict: конкурентная запись выиграла гонку, операцию нужно повторить целиком.
	ErrStateConflict = errors.New("state conflict")
	// ErrNotEligible: предусловия операции не выполнены (типизированный отказ).
	ErrNotEligible = errors.New("not eligible")
	// ErrNotFound: запись не найдена.
	ErrNotFound = errors.New("not found")
	// ErrCycleNotOpen: цикл уже закрывается или закрыт, запись в него запрещена.
	ErrCycleNotOpen = errors.New("cycle is not open")
	// ErrInvalidTransition: недопустимый переход статуса заявки на вывод.
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Отказы при создании заявки на вывод средств.
var (
	ErrInsufficientApprovedCount = fmt.Errorf("%w: insufficient approved question count", ErrNotEligible)
	ErrBelowMinimum              = fmt.Errorf("%w: amount below minimum withdrawal", ErrNotEligible)
	ErrInsufficientBalance       = fmt.Errorf("%w: insufficient balance", ErrNotEligible)
)
