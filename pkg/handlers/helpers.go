package handlers

import (
	"net/http"

	"sticker-sales-api/pkg/services"
)

// statusForError エラー分類をHTTPステータスコードに対応付ける
func statusForError(err error) int {
	switch services.KindOf(err) {
	case services.ErrKindSchemaMismatch:
		return http.StatusBadRequest
	case services.ErrKindTransport:
		return http.StatusBadGateway
	case services.ErrKindHTTPStatus:
		return http.StatusBadGateway
	case services.ErrKindDecode:
		return http.StatusBadGateway
	case services.ErrKindRowCount, services.ErrKindEncoding:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}
