package apierr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAsKeepsWrappedStatus(t *testing.T) {
	cause := errors.New("run not found")
	err := fmt.Errorf("load run: %w", NotFound("run_not_found", cause))

	ae := As(err, "internal")
	assert.Equal(t, http.StatusNotFound, ae.Status)
	assert.Equal(t, "run_not_found", ae.Code)
	assert.ErrorIs(t, err, cause)
}

func TestAsFallsBackTo500(t *testing.T) {
	ae := As(errors.New("boom"), "render_failed")
	assert.Equal(t, http.StatusInternalServerError, ae.Status)
	assert.Equal(t, "render_failed", ae.Code)
}

func TestErrorText(t *testing.T) {
	var nilErr *Error
	assert.Equal(t, "", nilErr.Error())
	assert.Equal(t, "mapping_incomplete", Conflict("mapping_incomplete", nil).Error())
	assert.Equal(t, "api error (413)", New(http.StatusRequestEntityTooLarge, "", nil).Error())
	assert.Equal(t, "too big", TooLarge("dataset_too_large", errors.New("too big")).Error())
}
