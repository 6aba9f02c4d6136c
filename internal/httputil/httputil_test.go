package httputil

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriteJSONSetsStatusAndContentType(t *testing.T) {
	rw := httptest.NewRecorder()
	WriteJSON(rw, 201, map[string]string{"a": "b"})
	assert.Equal(t, 201, rw.Code)
	assert.Equal(t, "application/json; charset=utf-8", rw.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"a":"b"}`, rw.Body.String())
}

func TestOkJSONUses200(t *testing.T) {
	rw := httptest.NewRecorder()
	OkJSON(rw, map[string]int{"n": 1})
	assert.Equal(t, 200, rw.Code)
}
