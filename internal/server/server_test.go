package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/datasync/internal/config"
	"github.com/smallbiznis/datasync/internal/observability"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockReader struct {
	mock.Mock
}

func (m *mockReader) ListActivities(ctx context.Context, req recorddomain.ListActivitiesRequest) (recorddomain.ListActivitiesResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(recorddomain.ListActivitiesResponse), args.Error(1)
}

func (m *mockReader) ListPairHistory(ctx context.Context, activityID string) ([]recorddomain.PairHistoryEntry, error) {
	args := m.Called(ctx, activityID)
	return args.Get(0).([]recorddomain.PairHistoryEntry), args.Error(1)
}

func (m *mockReader) CountRecords(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockReader) FindRecord(ctx context.Context, dhrID string) (*recorddomain.CanonicalRecord, error) {
	args := m.Called(ctx, dhrID)
	rec, _ := args.Get(0).(*recorddomain.CanonicalRecord)
	return rec, args.Error(1)
}

func newTestServer(t *testing.T, reader recorddomain.Reader) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	engine := NewEngine(observability.Config{Environment: "test"})
	return NewServer(ServerParams{
		Gin:    engine,
		Cfg:    config.Config{AppName: "datasync", AppVersion: "test", Store: config.StoreConfig{Driver: config.StoreDriverSQL}},
		Reader: reader,
	})
}

func do(t *testing.T, s *Server, path string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	s.Engine().ServeHTTP(w, req)
	var body map[string]any
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		_ = json.Unmarshal(w.Body.Bytes(), &body)
	}
	return w, body
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, &mockReader{})
	w, body := do(t, s, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "sql", body["store"])
}

func TestListActivities(t *testing.T) {
	reader := &mockReader{}
	start := time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC)
	reader.On("ListActivities", mock.Anything, recorddomain.ListActivitiesRequest{
		Pagination: pagination.Pagination{PageSize: 5, PageToken: "abc"},
	}).Return(recorddomain.ListActivitiesResponse{
		PageInfo:   pagination.PageInfo{NextPageToken: "next", HasMore: true},
		Activities: []recorddomain.ActivityRecord{{ActivityID: "act-1", TotalFiles: 4, PassedFiles: 3, FailedFiles: 1, StartTime: start}},
	}, nil)

	s := newTestServer(t, reader)
	w, body := do(t, s, "/api/activities?limit=5&page_token=abc")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	data := body["data"].([]any)
	require.Len(t, data, 1)
	assert.Equal(t, "act-1", data[0].(map[string]any)["activity_id"])
	assert.Equal(t, float64(3), data[0].(map[string]any)["passed_files"])
	assert.Equal(t, true, body["page_info"].(map[string]any)["has_more"])
	reader.AssertExpectations(t)
}

func TestListActivitiesRejectsBadInput(t *testing.T) {
	reader := &mockReader{}
	reader.On("ListActivities", mock.Anything, mock.Anything).Return(recorddomain.ListActivitiesResponse{}, recorddomain.ErrInvalidPageToken)
	s := newTestServer(t, reader)

	w, _ := do(t, s, "/api/activities?page_size=1000")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := do(t, s, "/api/activities?page_token=%25%25")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	errs := body["error"].(map[string]any)["errors"].([]any)
	assert.Equal(t, "page_token", errs[0].(map[string]any)["field"])
}

func TestListActivityPairs(t *testing.T) {
	reader := &mockReader{}
	reader.On("ListPairHistory", mock.Anything, "act-1").Return([]recorddomain.PairHistoryEntry{
		{StatusID: "1", DHRID: "7", ActivityID: "act-1", PairName: "alpha", Status: recorddomain.PairPassed},
		{StatusID: "2", DHRID: "8", ActivityID: "act-1", PairName: "delta", Status: recorddomain.PairFailed},
	}, nil)

	s := newTestServer(t, reader)
	w, body := do(t, s, "/api/activities/act-1/pairs")
	require.Equal(t, http.StatusOK, w.Code)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, "Failed", data[1].(map[string]any)["status"])
}

func TestCountRecords(t *testing.T) {
	reader := &mockReader{}
	reader.On("CountRecords", mock.Anything).Return(int64(3), nil)

	s := newTestServer(t, reader)
	w, body := do(t, s, "/api/records/count")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), body["count"])
}

func TestGetRecord(t *testing.T) {
	reader := &mockReader{}
	reader.On("FindRecord", mock.Anything, "7").Return(&recorddomain.CanonicalRecord{
		DHRID:    "7",
		PairName: "alpha",
		Link:     []recorddomain.LinkEntry{{ArcDocID: "0000000000000001", URL: "file:///binary/documents/0000000000000001_data"}},
	}, nil)
	reader.On("FindRecord", mock.Anything, "404").Return(nil, nil)
	reader.On("FindRecord", mock.Anything, "500").Return(nil, errors.New("connection reset"))

	s := newTestServer(t, reader)

	w, body := do(t, s, "/api/records/7")
	require.Equal(t, http.StatusOK, w.Code)
	rec := body["data"].(map[string]any)
	assert.Equal(t, "alpha", rec["PAIR_NAME"])

	w, body = do(t, s, "/api/records/404")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", body["error"].(map[string]any)["type"])

	w, _ = do(t, s, "/api/records/500")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t, &mockReader{})
	w, _ := do(t, s, "/api/invoices")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, &mockReader{})
	w, _ := do(t, s, "/metrics")
	assert.Equal(t, http.StatusOK, w.Code)
}
