package handler

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
)

func TestStatusFor(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{domain.NewError(domain.ErrInvalidInput, "bad"), http.StatusBadRequest},
		{domain.ErrUsernameTaken, http.StatusBadRequest},
		{domain.NewError(domain.ErrUnauthorized, "no"), http.StatusUnauthorized},
		{domain.NewError(domain.ErrExpired, "old"), http.StatusUnauthorized},
		{domain.NewError(domain.ErrForbidden, "no"), http.StatusForbidden},
		{fmt.Errorf("wrapped: %w", domain.NewError(domain.ErrNotFound, "gone")), http.StatusNotFound},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, StatusFor(tc.err), tc.err.Error())
	}
}

func TestWriteErrorHidesInternals(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/tasks", nil)
	writeError(rec, req, discardLogger(), errors.New("pq: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "pq:")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestDecodeJSON(t *testing.T) {
	var v struct{ Name string }

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	err := decodeJSON(httptest.NewRecorder(), req, &v)
	assert.Equal(t, "request body is required", domain.MessageOf(err))

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader("{"))
	err = decodeJSON(httptest.NewRecorder(), req, &v)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"Name":"x"}`))
	assert.NoError(t, decodeJSON(httptest.NewRecorder(), req, &v))
	assert.Equal(t, "x", v.Name)
}
