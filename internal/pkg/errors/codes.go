package errors

import (
	"fmt"
	"net/http"
)

// Code represents an error code with HTTP status and message
type Code struct {
	Code    int    // Business error code
	Status  int    // HTTP status code
	Message string // Error message
}

// Error codes for different modules
const (
	// Success
	Success = 0

	// Common errors (1000-1999)
	ErrInternalServer  = 1000
	ErrInvalidParams   = 1001
	ErrNotFound        = 1002
	ErrConflict        = 1003
	ErrTooManyRequests = 1004
	ErrBadRequest      = 1005
	ErrServiceUnavail  = 1006

	// Search pipeline errors (2000-2999)
	ErrSearchAnalysisFailed   = 2000
	ErrSearchProviderFailed   = 2001
	ErrSearchGenerationFailed = 2002
	ErrSearchSessionNotFound  = 2003
	ErrSearchMalformedEvent   = 2004
	ErrSearchStreamClosed     = 2005

	// Document errors (3000-3999)
	ErrDocNotFound         = 3000
	ErrDocInvalidFileType  = 3001
	ErrDocFileTooLarge     = 3002
	ErrDocProcessingFailed = 3003
	ErrDocStorageFailed    = 3004
	ErrDocVectorDBFailed   = 3005
	ErrDocEmbeddingFailed  = 3006

	// Conversation errors (4000-4999)
	ErrConversationStoreFailed = 4000
)

// codeMap maps error codes to their details
var codeMap = map[int]Code{
	Success: {Success, http.StatusOK, "Success"},

	// Common errors
	ErrInternalServer:  {ErrInternalServer, http.StatusInternalServerError, "Internal server error"},
	ErrInvalidParams:   {ErrInvalidParams, http.StatusBadRequest, "Invalid parameters"},
	ErrNotFound:        {ErrNotFound, http.StatusNotFound, "Resource not found"},
	ErrConflict:        {ErrConflict, http.StatusConflict, "Resource conflict"},
	ErrTooManyRequests: {ErrTooManyRequests, http.StatusTooManyRequests, "Too many requests"},
	ErrBadRequest:      {ErrBadRequest, http.StatusBadRequest, "Bad request"},
	ErrServiceUnavail:  {ErrServiceUnavail, http.StatusServiceUnavailable, "Service unavailable"},

	// Search pipeline errors
	ErrSearchAnalysisFailed:   {ErrSearchAnalysisFailed, http.StatusInternalServerError, "Query analysis failed"},
	ErrSearchProviderFailed:   {ErrSearchProviderFailed, http.StatusBadGateway, "Web search provider failed"},
	ErrSearchGenerationFailed: {ErrSearchGenerationFailed, http.StatusInternalServerError, "Answer generation failed"},
	ErrSearchSessionNotFound:  {ErrSearchSessionNotFound, http.StatusNotFound, "Search session not found"},
	ErrSearchMalformedEvent:   {ErrSearchMalformedEvent, http.StatusBadRequest, "Malformed stream event"},
	ErrSearchStreamClosed:     {ErrSearchStreamClosed, http.StatusConflict, "Stream already closed"},

	// Document errors
	ErrDocNotFound:         {ErrDocNotFound, http.StatusNotFound, "Document not found"},
	ErrDocInvalidFileType:  {ErrDocInvalidFileType, http.StatusBadRequest, "Unsupported file type"},
	ErrDocFileTooLarge:     {ErrDocFileTooLarge, http.StatusBadRequest, "File size exceeds limit"},
	ErrDocProcessingFailed: {ErrDocProcessingFailed, http.StatusInternalServerError, "Document processing failed"},
	ErrDocStorageFailed:    {ErrDocStorageFailed, http.StatusInternalServerError, "Storage operation failed"},
	ErrDocVectorDBFailed:   {ErrDocVectorDBFailed, http.StatusInternalServerError, "Vector database operation failed"},
	ErrDocEmbeddingFailed:  {ErrDocEmbeddingFailed, http.StatusInternalServerError, "Embedding generation failed"},

	// Conversation errors
	ErrConversationStoreFailed: {ErrConversationStoreFailed, http.StatusInternalServerError, "Conversation store operation failed"},
}

// GetCode returns the Code for a given error code
func GetCode(code int) Code {
	if c, ok := codeMap[code]; ok {
		return c
	}
	return codeMap[ErrInternalServer]
}

// GetHTTPStatus returns HTTP status for a given error code
func GetHTTPStatus(code int) int {
	return GetCode(code).Status
}

// GetMessage returns the message for a given error code
func GetMessage(code int) string {
	return GetCode(code).Message
}

// FormatError formats an error message with code
func FormatError(code int, details ...string) string {
	msg := GetMessage(code)
	if len(details) > 0 && details[0] != "" {
		return fmt.Sprintf("%s: %s", msg, details[0])
	}
	return msg
}
