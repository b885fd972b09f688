package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func fixedNow() time.Time { return time.Unix(1700000000, 0) }

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/predict", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	h := NewServer(12, nil, fixedNow)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"ok": true, "window": 12}`, rec.Body.String())
}

func TestServer_PredictMapsActionToWeight(t *testing.T) {
	h := NewServer(2, func([][5]float64) float64 { return 0.5 }, fixedNow)

	rec := post(t, h, `{"ohlcv_window": [[1,2,0,1,10],[1,2,0,1,10]]}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"target_w": 0.75, "ts": 1700000000}`, rec.Body.String())
}

func TestServer_PredictRejectsBadShape(t *testing.T) {
	h := NewServer(2, nil, fixedNow)

	for _, body := range []string{
		`not json`,
		`{}`,
		`{"ohlcv_window": [[1,2,0,1,10]]}`,
		`{"ohlcv_window": [[1,2,0,1],[1,2,0,1,10]]}`,
	} {
		rec := post(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Contains(t, rec.Body.String(), "error")
	}
}

func TestMomentumPolicy(t *testing.T) {
	flat := testWindow(1)
	assert.Zero(t, MomentumPolicy(flat))
	assert.Zero(t, MomentumPolicy(nil))

	rising := testWindow(12)
	a := MomentumPolicy(rising)
	assert.Greater(t, a, 0.0)
	assert.LessOrEqual(t, a, 1.0)
}

func TestServer_WorksWithClient(t *testing.T) {
	srv := httptest.NewServer(NewServer(12, nil, fixedNow))
	defer srv.Close()

	c := NewClient(srv.URL + "/predict")
	w := c.Predict(context.Background(), testWindow(12))

	assert.Greater(t, w, 0.5)
	assert.LessOrEqual(t, w, 1.0)

	var resp PredictResponse
	body, _ := json.Marshal(PredictRequest{OHLCVWindow: testWindow(12)})
	r, err := http.Post(srv.URL+"/predict", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer r.Body.Close()
	require.NoError(t, json.NewDecoder(r.Body).Decode(&resp))
	require.NotNil(t, resp.TargetW)
	assert.InDelta(t, w, *resp.TargetW, 1e-12)
	assert.Equal(t, int64(1700000000), resp.TS)
}
