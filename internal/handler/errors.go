package handler

import (
	"errors"
	"net/http"

	"backend/pkg/apperr"

	"gorm.io/gorm"
)

// httpStatus maps service-layer errors to HTTP status codes.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, apperr.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, apperr.ErrHierarchyViolation):
		return http.StatusForbidden
	case errors.Is(err, apperr.ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
