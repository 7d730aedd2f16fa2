package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSSEWriter_Frames(t *testing.T) {
	w := httptest.NewRecorder()

	sse, err := NewSSEWriter(w)
	require.NoError(t, err)
	require.NoError(t, sse.WriteEvent("progress", map[string]string{"state": "parsing"}))
	require.NoError(t, sse.WriteComment("keep\nalive"))
	sse.WriteComplete("run-1", "completed")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "no", w.Header().Get("X-Accel-Buffering"))
	assert.Equal(t,
		"retry: 3000\n\n"+
			"id: 1\nevent: progress\ndata: {\"state\":\"parsing\"}\n\n"+
			": keep alive\n\n"+
			"id: 2\nevent: complete\ndata: {\"run_id\":\"run-1\",\"status\":\"completed\"}\n\n",
		w.Body.String())
}

func TestSSEWriter_ErrorHidesInternalDetails(t *testing.T) {
	w := httptest.NewRecorder()
	sse, err := NewSSEWriter(w)
	require.NoError(t, err)

	sse.WriteError(errors.New("connection string postgres://secret"))

	assert.Contains(t, w.Body.String(), "event: error\n")
	assert.NotContains(t, w.Body.String(), "secret")
}

func TestSSEWriter_EncodingFailure(t *testing.T) {
	sse, err := NewSSEWriter(httptest.NewRecorder())
	require.NoError(t, err)

	assert.Error(t, sse.WriteEvent("bad", make(chan int)))
}

type nonFlusher struct{ http.ResponseWriter }

func TestSSEWriter_RequiresFlusher(t *testing.T) {
	_, err := NewSSEWriter(nonFlusher{httptest.NewRecorder()})
	assert.ErrorContains(t, err, "streaming not supported")
}
