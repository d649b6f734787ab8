package errors

import (
	stderrors "errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "format error: missing log.entries", New(ErrorTypeFormat, "missing log.entries").Error())

	withCode := FromStatus(503, "http://x/a.mp4")
	assert.Equal(t, "server_error error (code 503): unexpected status for http://x/a.mp4", withCode.Error())

	wrapped := Wrap(ErrorTypeFilesystem, io.ErrShortWrite, "write A.mp4")
	assert.Equal(t, "filesystem error: write A.mp4: short write", wrapped.Error())
}

func TestUnwrapAndHelpers(t *testing.T) {
	base := Wrap(ErrorTypeDecode, io.ErrUnexpectedEOF, "entry 3")
	outer := fmt.Errorf("exchange skipped: %w", base)

	assert.True(t, stderrors.Is(outer, io.ErrUnexpectedEOF))
	assert.Equal(t, ErrorTypeDecode, TypeOf(outer))
	assert.True(t, Is(outer, ErrorTypeDecode))
	assert.False(t, Is(outer, ErrorTypeParse))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(io.EOF))

	nested := Wrap(ErrorTypeNetwork, FromStatus(404, "u"), "fetch")
	assert.True(t, Is(nested, ErrorTypeNotFound))
}

func TestFromStatus(t *testing.T) {
	tests := []struct {
		code int
		want ErrorType
	}{
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{502, ErrorTypeServerError},
		{403, ErrorTypeNetwork},
		{302, ErrorTypeUnknown},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.code), func(t *testing.T) {
			e := FromStatus(tt.code, "u")
			assert.Equal(t, tt.want, e.Type)
			assert.Equal(t, tt.code, e.Code)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrorTypeNetwork))
	assert.True(t, IsRetryable(ErrorTypeServerError))
	assert.True(t, IsRetryable(ErrorTypeRateLimit))
	assert.False(t, IsRetryable(ErrorTypeNotFound))
	assert.False(t, IsRetryable(ErrorTypeFilesystem))

	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(504))
	assert.False(t, IsRetryableStatusCode(404))
	assert.False(t, IsRetryableStatusCode(400))
}
