package audit

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandlerList(t *testing.T) {
	store := &memStore{entries: []Entry{{Action: "quote.send", Method: "POST"}}}
	rr := httptest.NewRecorder()
	Handler{Store: store}.List(rr, httptest.NewRequest(http.MethodGet, "/audit?limit=25&offset=10", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	require.Equal(t, 25, store.limit)
	require.Equal(t, 10, store.offset)

	var payload struct {
		Data []Entry `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &payload))
	require.Len(t, payload.Data, 1)
}

func TestHandlerListClampsAndFails(t *testing.T) {
	store := &memStore{}
	rr := httptest.NewRecorder()
	Handler{Store: store}.List(rr, httptest.NewRequest(http.MethodGet, "/audit?limit=9000&offset=-3", nil))
	require.Equal(t, 50, store.limit)
	require.Equal(t, 0, store.offset)

	store.err = errors.New("boom")
	rr = httptest.NewRecorder()
	Handler{Store: store}.List(rr, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusInternalServerError, rr.Code)
}
