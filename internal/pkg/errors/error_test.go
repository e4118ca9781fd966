package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	err := New(ErrDocNotFound, "doc-42")

	assert.Equal(t, ErrDocNotFound, err.Code)
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus())
	assert.Equal(t, "[3000] Document not found: doc-42", err.Error())
}

func TestWrapPreservesCauseAndCode(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, ErrDocVectorDBFailed, "insert chunks")

	assert.True(t, stderrors.Is(err, cause))
	assert.Equal(t, ErrDocVectorDBFailed, ExtractCode(err))
	assert.True(t, Is(err, ErrDocVectorDBFailed))

	// Re-wrapping with a different code keeps the original one.
	rewrapped := Wrap(err, ErrInternalServer)
	assert.Equal(t, ErrDocVectorDBFailed, rewrapped.Code)
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, ErrInternalServer))
}

func TestExtractCodeUncoded(t *testing.T) {
	assert.Equal(t, ErrInternalServer, ExtractCode(stderrors.New("boom")))
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(ExtractCode(stderrors.New("boom"))))
}

func TestUnknownCodeFallsBack(t *testing.T) {
	assert.Equal(t, http.StatusInternalServerError, GetHTTPStatus(99999))
	assert.Equal(t, "Internal server error", GetMessage(99999))
}
