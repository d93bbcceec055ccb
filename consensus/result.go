// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package consensus

// ValidationResult carries either data, consensus errors, or both. Fee
// validation returns both so the caller sees the estimate even on failure.
type ValidationResult[T any] struct {
	data    T
	hasData bool
	errors  []Error
}

// SimpleValidationResult is a result without data.
type SimpleValidationResult = ValidationResult[struct{}]

func NewWithData[T any](data T) ValidationResult[T] {
	return ValidationResult[T]{data: data, hasData: true}
}

func NewWithErrors[T any](errs ...Error) ValidationResult[T] {
	return ValidationResult[T]{errors: errs}
}

func NewWithDataAndErrors[T any](data T, errs ...Error) ValidationResult[T] {
	return ValidationResult[T]{data: data, hasData: true, errors: errs}
}

// NewSimple returns a valid result without data.
func NewSimple() SimpleValidationResult {
	return SimpleValidationResult{}
}

// IsValid is true when no consensus error was recorded.
func (r *ValidationResult[T]) IsValid() bool { return len(r.errors) == 0 }

// IsValidWithData is true when there is data and no error.
func (r *ValidationResult[T]) IsValidWithData() bool { return r.IsValid() && r.hasData }

func (r *ValidationResult[T]) HasData() bool { return r.hasData }

func (r *ValidationResult[T]) Data() T { return r.data }

func (r *ValidationResult[T]) Errors() []Error { return r.errors }

// FirstError returns the first recorded error or nil.
func (r *ValidationResult[T]) FirstError() Error {
	if len(r.errors) == 0 {
		return nil
	}
	return r.errors[0]
}

func (r *ValidationResult[T]) AddError(err Error) { r.errors = append(r.errors, err) }

func (r *ValidationResult[T]) AddErrors(errs ...Error) { r.errors = append(r.errors, errs...) }

func (r *ValidationResult[T]) SetData(data T) {
	r.data = data
	r.hasData = true
}

// MapResult converts the data of [r] with [f], keeping its errors. [f] is
// only called when [r] holds data.
func MapResult[T, U any](r ValidationResult[T], f func(T) U) ValidationResult[U] {
	out := ValidationResult[U]{errors: r.errors}
	if r.hasData {
		out.SetData(f(r.data))
	}
	return out
}

// ErrorsOnly drops the data of [r].
func ErrorsOnly[T any](r ValidationResult[T]) SimpleValidationResult {
	return SimpleValidationResult{errors: r.errors}
}
