package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	qtesting "github.com/audss/oncall/internal/testing"
	"github.com/audss/oncall/oncall"
	"github.com/audss/oncall/roster"
	"github.com/audss/oncall/sbc"
	"github.com/audss/oncall/schedule"
)

type stubUpdater struct {
	failHost bool
}

func (u *stubUpdater) ApplyNumber(ctx context.Context, number string) []sbc.Outcome {
	if u.failHost {
		return []sbc.Outcome{
			{Host: "pernetgw01", Status: sbc.OutcomeSuccess, Number: number},
			{Host: "parnetgw01", Status: sbc.OutcomeError, Message: "connection timed out"},
		}
	}
	return []sbc.Outcome{
		{Host: "pernetgw01", Status: sbc.OutcomeSuccess, Number: number},
		{Host: "parnetgw01", Status: sbc.OutcomeSuccess, Number: number},
	}
}

func (u *stubUpdater) CurrentStatus(ctx context.Context) []sbc.Outcome {
	return []sbc.Outcome{
		{Host: "pernetgw01", Status: sbc.OutcomeSuccess, Number: "61400000000"},
		{Host: "parnetgw01", Status: sbc.OutcomeSuccess, Number: "61400000000"},
	}
}

func newTestServer(t *testing.T) (*Server, *stubUpdater, *schedule.Store) {
	t.Helper()
	conn := qtesting.CreateTestDB(t)
	people := roster.NewStore(conn)
	jobs := schedule.NewStore(conn)
	updater := &stubUpdater{}
	svc := oncall.NewService(people, jobs, updater, nil, zap.NewNop().Sugar())
	srv := New(svc, nil, Options{Port: 0, AllowedOrigins: []string{"http://localhost"}},
		zap.NewNop().Sugar())
	return srv, updater, jobs
}

func doRequest(t *testing.T, srv *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func createPersonViaAPI(t *testing.T, srv *Server) map[string]interface{} {
	t.Helper()
	rec := doRequest(t, srv, http.MethodPost, "/api/users",
		map[string]string{"name": "Alex", "mobile": "0400111222"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var person map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &person))
	return person
}

func TestCreateUserEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	person := createPersonViaAPI(t, srv)
	assert.Equal(t, "Alex", person["name"])
	assert.Equal(t, "0400111222", person["mobile"])
	assert.NotEmpty(t, person["id"])
}

func TestCreateUserValidation(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/users",
		map[string]string{"name": "", "mobile": "0400111222"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListUsersEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	createPersonViaAPI(t, srv)
	rec = doRequest(t, srv, http.MethodGet, "/api/users", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var people []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &people))
	assert.Len(t, people, 1)
}

func TestUpdateUserEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	rec := doRequest(t, srv, http.MethodPut, "/api/users/"+person["id"].(string),
		map[string]string{"name": "Alexandra"})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, "Alexandra", updated["name"])
	assert.Equal(t, "0400111222", updated["mobile"])
}

func TestUpdateUserNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPut, "/api/users/no-such-id",
		map[string]string{"name": "Nobody"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUserEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	rec := doRequest(t, srv, http.MethodDelete, "/api/users/"+person["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, srv, http.MethodDelete, "/api/users/"+person["id"].(string), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeleteUserCancelsSchedules(t *testing.T) {
	srv, _, jobs := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	dueAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": person["id"].(string), "scheduled_datetime": dueAt})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = doRequest(t, srv, http.MethodDelete, "/api/users/"+person["id"].(string), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := jobs.Get(context.Background(), job["id"].(string))
	require.NoError(t, err)
	assert.Equal(t, schedule.StatusCancelled, got.Status)
}

func TestOncallStatusEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/oncall", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string][]sbc.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["results"], 2)
}

func TestUpdateNowAllSuccess(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/oncall/update",
		map[string]string{"mobile": "0400111222"})
	require.Equal(t, http.StatusOK, rec.Code)
	var body updateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.True(t, sbc.AllSuccessful(body.Results))
}

func TestUpdateNowPartialFailureReturns207(t *testing.T) {
	srv, updater, _ := newTestServer(t)
	updater.failHost = true

	rec := doRequest(t, srv, http.MethodPost, "/api/oncall/update",
		map[string]string{"mobile": "0400111222"})
	require.Equal(t, http.StatusMultiStatus, rec.Code)
	var body updateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Results, 2)
	assert.Equal(t, sbc.OutcomeSuccess, body.Results[0].Status)
	assert.Equal(t, sbc.OutcomeError, body.Results[1].Status)
	assert.NotEmpty(t, body.Results[1].Message)
}

func TestUpdateNowEmptyMobile(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/api/oncall/update",
		map[string]string{"mobile": ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateScheduleEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	dueAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": person["id"].(string), "scheduled_datetime": dueAt})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doRequest(t, srv, http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var pending []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &pending))
	require.Len(t, pending, 1)
	assert.Equal(t, "Alex", pending[0]["name"])
}

func TestCreateScheduleUnknownUser(t *testing.T) {
	srv, _, _ := newTestServer(t)

	dueAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": "no-such-user", "scheduled_datetime": dueAt})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateScheduleBadTimestamp(t *testing.T) {
	srv, _, _ := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	rec := doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": person["id"].(string), "scheduled_datetime": "next tuesday"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCancelScheduleEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)
	person := createPersonViaAPI(t, srv)

	dueAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec := doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": person["id"].(string), "scheduled_datetime": dueAt})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/schedule/%s", job["id"]), nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	// Cancelling again conflicts with the terminal status
	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/schedule/%s", job["id"]), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCancelScheduleNotFound(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/schedule/no-such-job", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodDelete, "/api/oncall/update", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	srv, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestScheduleHistoryEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/api/schedule/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	person := createPersonViaAPI(t, srv)
	dueAt := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	rec = doRequest(t, srv, http.MethodPost, "/api/schedule",
		map[string]string{"user_id": person["id"].(string), "scheduled_datetime": dueAt})
	require.Equal(t, http.StatusCreated, rec.Code)
	var job map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))

	rec = doRequest(t, srv, http.MethodDelete, fmt.Sprintf("/api/schedule/%s", job["id"]), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Cancelled records stay in the history even though the pending list drops them.
	rec = doRequest(t, srv, http.MethodGet, "/api/schedule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]\n", rec.Body.String())

	rec = doRequest(t, srv, http.MethodGet, "/api/schedule/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var history []map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, "cancelled", history[0]["status"])
}
