package response

import (
	"net/http"

	"github.com/labstack/echo/v4"
	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/query"
)

// APIResponse represents a standard API response
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// ErrorResponse represents an error API response
type ErrorResponse struct {
	Success bool                   `json:"success"`
	Error   string                 `json:"error"`
	Code    string                 `json:"code,omitempty"`
	Fields  []apperrors.FieldError `json:"fields,omitempty"`
}

// PaginatedResponse represents a paginated API response
type PaginatedResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Meta    Meta        `json:"meta"`
}

// Meta contains pagination metadata
type Meta struct {
	Page        int   `json:"page"`
	PageSize    int   `json:"page_size"`
	NumPages    int   `json:"num_pages"`
	Total       int64 `json:"total"`
	HasNext     bool  `json:"has_next"`
	HasPrevious bool  `json:"has_previous"`
	// Next and Previous repeat the active filter so clients can follow them as-is
	Next     string `json:"next,omitempty"`
	Previous string `json:"previous,omitempty"`
}

// Success returns a successful response with data
func Success(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
	})
}

// SuccessWithMessage returns a successful response with a message
func SuccessWithMessage(c echo.Context, data interface{}, message string) error {
	return c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Data:    data,
		Message: message,
	})
}

// Created returns a 201 Created response
func Created(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusCreated, APIResponse{
		Success: true,
		Data:    data,
	})
}

// NoContent returns a 204 No Content response
func NoContent(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Paginated returns one page of items with its metadata and links to the
// neighbouring pages under the same filter
func Paginated[T any](c echo.Context, page *query.Page[T], filter query.Filter) error {
	items := page.Items
	if items == nil {
		items = []T{}
	}

	meta := Meta{
		Page:        page.Number,
		PageSize:    page.PageSize,
		NumPages:    page.NumPages,
		Total:       page.Total,
		HasNext:     page.HasNext,
		HasPrevious: page.HasPrevious,
	}
	if page.HasNext {
		meta.Next = pageLink(c, filter, page.Number+1)
	}
	if page.HasPrevious {
		meta.Previous = pageLink(c, filter, page.Number-1)
	}

	return c.JSON(http.StatusOK, PaginatedResponse{
		Success: true,
		Data:    items,
		Meta:    meta,
	})
}

// pageLink returns the request path with the filter encoded for page n
func pageLink(c echo.Context, filter query.Filter, n int) string {
	filter.Page = n
	path := c.Request().URL.Path
	if values := filter.Values(); len(values) > 0 {
		return path + "?" + values.Encode()
	}
	return path
}

// Error returns an error response with appropriate status code.
// Validation failures list every invalid field; internal errors hide their detail.
func Error(c echo.Context, err error) error {
	code := apperrors.GetErrorCode(err)
	status := HTTPStatus(code)

	resp := ErrorResponse{
		Success: false,
		Error:   err.Error(),
		Code:    code,
	}
	if vErr := apperrors.GetValidationError(err); vErr != nil {
		resp.Error = "validation failed"
		resp.Fields = vErr.Fields
	}
	if status == http.StatusInternalServerError {
		resp.Error = "internal server error"
	}

	return c.JSON(status, resp)
}

// BadRequest returns a 400 Bad Request response
func BadRequest(c echo.Context, message string) error {
	return c.JSON(http.StatusBadRequest, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInvalidInput,
	})
}

// NotFound returns a 404 Not Found response
func NotFound(c echo.Context, message string) error {
	return c.JSON(http.StatusNotFound, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeNotFound,
	})
}

// InternalError returns a 500 Internal Server Error response
func InternalError(c echo.Context, message string) error {
	return c.JSON(http.StatusInternalServerError, ErrorResponse{
		Success: false,
		Error:   message,
		Code:    apperrors.CodeInternalError,
	})
}

// HTTPStatus maps error codes to HTTP status codes
func HTTPStatus(code string) int {
	switch code {
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeInvalidInput, apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case apperrors.CodeUnsupportedMedia:
		return http.StatusUnsupportedMediaType
	default:
		return http.StatusInternalServerError
	}
}
