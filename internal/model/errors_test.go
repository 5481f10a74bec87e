package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidationError(t *testing.T) {
	err := ValidationError("name", "must not be empty")
	assert.Equal(t, KindValidation, err.Kind)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "must not be empty")
}

func TestSentinelMatching(t *testing.T) {
	var err error = NotFoundError("job 5 not found")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.False(t, errors.Is(err, ErrConflict))

	err = ConcurrencyError("stale row version")
	assert.True(t, errors.Is(err, ErrConcurrency))
}

func TestJobSpecValidate(t *testing.T) {
	valid := JobSpec{
		Name:     "nightly report",
		URL:      "https://example.com/webhook",
		Method:   MethodPOST,
		CronExpr: "0 0 * * *",
	}
	assert.Nil(t, valid.Validate())

	invalid := valid
	invalid.URL = "ftp://example.com"
	err := invalid.Validate()
	if assert.NotNil(t, err) {
		assert.Equal(t, "url", err.Field)
	}

	invalid = valid
	invalid.Method = "OPTIONS"
	err = invalid.Validate()
	if assert.NotNil(t, err) {
		assert.Equal(t, "method", err.Field)
	}

	invalid = valid
	invalid.Name = ""
	err = invalid.Validate()
	if assert.NotNil(t, err) {
		assert.Equal(t, "name", err.Field)
	}
}

func TestHeadersGetIsCaseInsensitive(t *testing.T) {
	h := Headers{"Content-Type": "application/json"}
	v, ok := h.Get("content-type")
	assert.True(t, ok)
	assert.Equal(t, "application/json", v)
}
