package rpc

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newtube/backend/internal/models"
)

func init() { gin.SetMode(gin.TestMode) }

type idInput struct {
	ID    string `json:"id" binding:"required,uuid"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=100"`
}

func TestCodeHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, CodeBadRequest.HTTPStatus())
	assert.Equal(t, http.StatusUnauthorized, CodeUnauthorized.HTTPStatus())
	assert.Equal(t, http.StatusNotFound, CodeNotFound.HTTPStatus())
	assert.Equal(t, http.StatusTooManyRequests, CodeTooManyRequests.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, CodeInternalServerError.HTTPStatus())
	assert.Equal(t, http.StatusInternalServerError, Code("WHATEVER").HTTPStatus())
}

func TestAbortMapsErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"typed", Errorf(CodeBadRequest, "id required"), http.StatusBadRequest, `"code":"BAD_REQUEST"`},
		{"not found sentinel", fmt.Errorf("get video: %w", models.ErrNotFound), http.StatusNotFound, `"code":"NOT_FOUND"`},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, `"code":"INTERNAL_SERVER_ERROR"`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			Abort(c, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Contains(t, w.Body.String(), tc.code)
			assert.NotContains(t, w.Body.String(), "boom")
		})
	}
}

func TestBindInputQuery(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/trpc/studio.getOne?input="+url.QueryEscape(`{"id":"6f1c2a9e-8d6b-4f3e-9a57-0d2b9d7c1e11"}`), nil)

	var in idInput
	require.NoError(t, BindInput(c, &in))
	assert.Equal(t, "6f1c2a9e-8d6b-4f3e-9a57-0d2b9d7c1e11", in.ID)
}

func TestBindInputBodyValidation(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/trpc/videos.remove", strings.NewReader(`{"id":"not-a-uuid"}`))

	var in idInput
	err := BindInput(c, &in)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeBadRequest, rpcErr.Code)
}

func TestBindInputMalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/trpc/studio.getOne?input="+url.QueryEscape("{"), nil)

	var in idInput
	err := BindInput(c, &in)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeBadRequest, rpcErr.Code)
}

func TestBindInputBody(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/trpc/videos.remove",
		strings.NewReader(`{"id":"6f1c2a9e-8d6b-4f3e-9a57-0d2b9d7c1e11","limit":5}`))
	c.Request.Header.Set("Content-Type", "application/json")

	var in idInput
	require.NoError(t, BindInput(c, &in))
	assert.Equal(t, "6f1c2a9e-8d6b-4f3e-9a57-0d2b9d7c1e11", in.ID)
	assert.Equal(t, 5, in.Limit)
}

func TestBindInputEmptyBody(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/trpc/videos.remove", http.NoBody)

	var in idInput
	err := BindInput(c, &in)
	var rpcErr *Error
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, CodeBadRequest, rpcErr.Code)
}
