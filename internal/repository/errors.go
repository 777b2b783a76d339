package repository

import (
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
)

// Common repository errors
var (
	ErrNotFound     = apperrors.ErrNotFound
	ErrInvalidInput = apperrors.ErrInvalidInput
)
