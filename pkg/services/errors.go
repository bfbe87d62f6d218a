package services

import (
	"errors"
	"fmt"
)

// ErrorKind 予測パイプラインで発生しうるエラーの分類
type ErrorKind string

const (
	// ErrKindTransport 接続失敗・タイムアウトなどHTTP到達前の失敗
	ErrKindTransport ErrorKind = "transport_error"
	// ErrKindHTTPStatus 非200レスポンス（ステータスと本文をそのまま保持）
	ErrKindHTTPStatus ErrorKind = "http_status_error"
	// ErrKindDecode レスポンスJSONの解析失敗
	ErrKindDecode ErrorKind = "decode_error"
	// ErrKindSchemaMismatch 入力テーブルに必要な列が無い
	ErrKindSchemaMismatch ErrorKind = "schema_mismatch"
	// ErrKindRowCount 予測数と入力行数の不一致
	ErrKindRowCount ErrorKind = "row_count_mismatch"
	// ErrKindEncoding 学習時エンコーディングへの変換失敗
	ErrKindEncoding ErrorKind = "encoding_error"
)

// Error is a classified pipeline error. Status carries the upstream HTTP
// status code for ErrKindHTTPStatus and is zero otherwise.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Kind, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a classified error with a formatted message.
func NewError(kind ErrorKind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies an underlying error without losing its chain.
func WrapError(kind ErrorKind, cause error, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// AsError reports whether err carries a classified Error and assigns it to
// target.
func AsError(err error, target **Error) bool {
	return errors.As(err, target)
}

// KindOf returns the classification of err, or an empty kind for unclassified
// errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
