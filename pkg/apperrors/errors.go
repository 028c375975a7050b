package apperrors

import "errors"

var (
	ErrNotFound             = errors.New("not found")
	ErrInvalidInput         = errors.New("invalid input")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrGenerationFailed     = errors.New("sql generation failed")
	ErrPromptTooLarge       = errors.New("schema context exceeds prompt budget")
	ErrTenantScopeEmpty     = errors.New("no tables found for tenant prefix")
	ErrConfirmationInvalid  = errors.New("confirmation payload invalid or expired")
	ErrOperationNotAllowed  = errors.New("operation not allowed")
	ErrPlatformRequest      = errors.New("platform request failed")
)
