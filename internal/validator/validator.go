// Package validator provides input validation and sanitization functions
// for diagnostic report submissions.
package validator

import (
	"errors"
	"net/mail"
	"strconv"
	"strings"
	"unicode/utf8"

	apperrors "github.com/welldanyogia/webrana-diagnostics-backend/internal/errors"
	"github.com/welldanyogia/webrana-diagnostics-backend/internal/models"
)

// Validation errors
var (
	ErrInvalidEmail = errors.New("invalid email format")
	ErrInputTooLong = errors.New("input exceeds maximum length")
	ErrEmptyInput   = errors.New("input cannot be empty")
)

// Field messages returned to clients
const (
	MsgRequired        = "this field is required"
	MsgInvalidEmail    = "enter a valid email address"
	MsgInvalidCategory = "select a valid choice"
)

// ValidateEmail validates email address format according to RFC 5322.
// Returns nil if valid, or an appropriate error.
func ValidateEmail(email string) error {
	email = strings.TrimSpace(email)

	if email == "" {
		return ErrEmptyInput
	}

	// RFC 5321 specifies max email length of 254 characters
	if utf8.RuneCountInString(email) > models.MaxUserEmailLength {
		return ErrInputTooLong
	}

	addr, err := mail.ParseAddress(email)
	if err != nil {
		return ErrInvalidEmail
	}
	// Reject display-name forms such as "Bob <bob@example.com>"
	if addr.Address != email {
		return ErrInvalidEmail
	}

	return nil
}

// ReportFields holds the user-supplied fields of a report submission
type ReportFields struct {
	Title        string
	SUIdentifier string
	UserName     string
	UserEmail    string
	Message      string
	Category     string
}

// Clean trims whitespace and removes control characters from every field.
// Newlines in Message are preserved; the email address keeps its case.
func (f ReportFields) Clean() ReportFields {
	return ReportFields{
		Title:        SanitizeString(f.Title, 0),
		SUIdentifier: SanitizeString(f.SUIdentifier, 0),
		UserName:     SanitizeString(f.UserName, 0),
		UserEmail:    SanitizeString(f.UserEmail, 0),
		Message:      SanitizeText(f.Message),
		Category:     strings.ToLower(SanitizeString(f.Category, 0)),
	}
}

// ValidateReport checks every field and returns all violations at once.
// The returned category is the effective one (empty defaults to normal).
func ValidateReport(f ReportFields) (models.Category, *apperrors.ValidationError) {
	vErr := &apperrors.ValidationError{}

	checkRequired(vErr, "title", f.Title, models.MaxTitleLength)
	checkOptional(vErr, "su_identifier", f.SUIdentifier, models.MaxSUIdentifierLength)
	checkRequired(vErr, "user_name", f.UserName, models.MaxUserNameLength)

	switch err := ValidateEmail(f.UserEmail); {
	case errors.Is(err, ErrEmptyInput):
		vErr.Add("user_email", MsgRequired)
	case errors.Is(err, ErrInputTooLong):
		vErr.Add("user_email", maxLengthMessage(models.MaxUserEmailLength))
	case err != nil:
		vErr.Add("user_email", MsgInvalidEmail)
	}

	if strings.TrimSpace(f.Message) == "" {
		vErr.Add("message", MsgRequired)
	}

	category := models.Category(f.Category)
	if category == "" {
		category = models.CategoryNormal
	}
	if !category.Valid() {
		vErr.Add("category", MsgInvalidCategory)
	}

	if !vErr.HasErrors() {
		return category, nil
	}
	return category, vErr
}

func checkRequired(vErr *apperrors.ValidationError, field, value string, maxLength int) {
	if value == "" {
		vErr.Add(field, MsgRequired)
		return
	}
	checkOptional(vErr, field, value, maxLength)
}

func checkOptional(vErr *apperrors.ValidationError, field, value string, maxLength int) {
	if utf8.RuneCountInString(value) > maxLength {
		vErr.Add(field, maxLengthMessage(maxLength))
	}
}

func maxLengthMessage(maxLength int) string {
	return "ensure this value has at most " + strconv.Itoa(maxLength) + " characters"
}

// SanitizeFilename removes dangerous characters from filename.
// Prevents path traversal and removes control characters.
func SanitizeFilename(filename string) string {
	// Remove path separators to prevent path traversal
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")

	filename = stripControl(filename, false)
	filename = strings.TrimSpace(filename)

	// Limit length to 255 characters (common filesystem limit)
	if utf8.RuneCountInString(filename) > 255 {
		runes := []rune(filename)
		filename = string(runes[:255])
	}

	if filename == "" {
		return "unnamed"
	}

	return filename
}

// SanitizeString removes control characters, trims whitespace and enforces
// maxLength when it is positive.
func SanitizeString(input string, maxLength int) string {
	input = strings.TrimSpace(stripControl(input, false))

	if maxLength > 0 && utf8.RuneCountInString(input) > maxLength {
		runes := []rune(input)
		input = string(runes[:maxLength])
	}

	return input
}

// SanitizeText is SanitizeString for multi-line text: newlines and tabs survive,
// CRLF is folded to LF.
func SanitizeText(input string) string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	return strings.TrimSpace(stripControl(input, true))
}

// stripControl drops ASCII control characters (0-31 and 127)
func stripControl(input string, keepLayout bool) string {
	return strings.Map(func(r rune) rune {
		if keepLayout && (r == '\n' || r == '\t') {
			return r
		}
		if r < 32 || r == 127 {
			return -1
		}
		return r
	}, input)
}
