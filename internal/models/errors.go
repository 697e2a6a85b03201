package models

import "errors"

// Domain error conditions shared by the use case and storage layers. The
// HTTP layer maps them to 404, 403 and 400 respectively.
var (
	ErrChatNotFound      = errors.New("chat not found")
	ErrNotChatOwner      = errors.New("chat does not belong to the user")
	ErrInvalidPagination = errors.New("limit and offset must be non-negative")
)
