package client

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandler_ServesScript(t *testing.T) {
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/"+ScriptName, nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(Script()), rec.Body.String())
	assert.Contains(t, rec.Body.String(), "data-fw-ref")
}

func TestScript_RequestsJSONSubprotocol(t *testing.T) {
	script := string(Script())
	assert.Contains(t, script, `var CODEC = "json";`)
	assert.Contains(t, script, "[CODEC]")
	assert.Contains(t, script, "JSON.stringify")
}
