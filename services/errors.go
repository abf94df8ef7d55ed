package services

import (
	"errors"
	"fmt"
)

// ValidationError — обязательный идентификатор или тело запроса отсутствует.
// Всегда возвращается до обращения к хранилищу и не ретраится.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s is required", e.Field)
}

// StoreError — запрос к хранилищу завершился ошибкой. Несет имя операции,
// на которой упал. Этот слой не ретраит, политика повторов на вызывающем.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store operation %q failed: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

func storeErr(op string, err error) error {
	return &StoreError{Op: op, Err: err}
}

// IsValidationError true, если в цепочке ошибок есть ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
