//go:build integration
// +build integration

package integration

import (
	"context"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type config struct {
	examURL    string
	statusURL  string
	dbURL      string
	httpclient *http.Client
}

var cfg config

func TestMain(m *testing.M) {
	cfg.examURL = GetEnvOrFail("EXAM_URL")
	cfg.statusURL = GetEnvOrFail("STATUS_URL")
	cfg.dbURL = GetEnvOrFail("DB_URL")
	cfg.httpclient = &http.Client{Timeout: time.Second * 30}

	tCtx, cf := context.WithTimeout(context.Background(), time.Second*20)
	defer cf()
	WaitForOpenOrFail(tCtx, cfg.examURL)
	WaitForOpenOrFail(tCtx, cfg.statusURL)
	waitForDB(tCtx, cfg.dbURL)

	os.Exit(m.Run())
}

func TestExamLive(t *testing.T) {
	t.Parallel()
	CheckCode(t, Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.examURL, "/live", nil)), http.StatusOK)
}

func TestStatusLive(t *testing.T) {
	t.Parallel()
	CheckCode(t, Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, "/live", nil)), http.StatusOK)
}

type statusResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func getStatus(t *testing.T, id string) statusResponse {
	resp := Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.statusURL, "status/"+id, nil))
	CheckCode(t, resp, http.StatusOK)
	var st statusResponse
	Decode(t, resp, &st)
	return st
}

func TestStatus_Check_None(t *testing.T) {
	t.Parallel()
	st := getStatus(t, "10")
	assert.Equal(t, "NOT_FOUND", st.Status)
	assert.Equal(t, "10", st.ID)
}

type idResponse struct {
	ID string `json:"id"`
}

type errorResponse struct {
	StatusCode int    `json:"statusCode"`
	StatusMsg  string `json:"statusMsg"`
}

func TestStartExam_NoTemplate(t *testing.T) {
	t.Parallel()
	req := NewRequest(t, http.MethodPost, cfg.examURL, "/exam",
		map[string]string{"userID": "u-int-test", "templateID": uuid.NewString()})
	resp := Invoke(t, cfg.httpclient, req)
	CheckCode(t, resp, http.StatusConflict)
	var er errorResponse
	Decode(t, resp, &er)
	assert.Equal(t, 5101, er.StatusCode)
}

func TestStartExam_Fail_NoUser(t *testing.T) {
	t.Parallel()
	req := NewRequest(t, http.MethodPost, cfg.examURL, "/exam",
		map[string]string{"templateID": uuid.NewString()})
	resp := Invoke(t, cfg.httpclient, req)
	CheckCode(t, resp, http.StatusBadRequest)
}

func TestTemplate_Create(t *testing.T) {
	t.Parallel()
	id := createTemplate(t)
	assert.NotEmpty(t, id)
}

func TestTemplate_Deprecate(t *testing.T) {
	t.Parallel()
	id := createTemplate(t)
	resp := Invoke(t, cfg.httpclient, NewRequest(t, http.MethodDelete, cfg.examURL, "template/"+id, nil))
	CheckCode(t, resp, http.StatusOK)

	req := NewRequest(t, http.MethodPost, cfg.examURL, "/exam",
		map[string]string{"userID": "u-int-test", "templateID": id})
	CheckCode(t, Invoke(t, cfg.httpclient, req), http.StatusConflict)
}

func createTemplate(t *testing.T) string {
	t.Helper()
	req := NewRequest(t, http.MethodPost, cfg.examURL, "/template",
		map[string]interface{}{"name": "int test paper", "duration": 600,
			"questions": []map[string]interface{}{{"type": 1}}})
	resp := Invoke(t, cfg.httpclient, req)
	CheckCode(t, resp, http.StatusOK)
	var ir idResponse
	Decode(t, resp, &ir)
	return ir.ID
}

type pretestResponse struct {
	ID     string `json:"id"`
	Text   string `json:"text"`
	Path   string `json:"path"`
	Status string `json:"status"`
}

func TestPretest(t *testing.T) {
	t.Parallel()
	resp := Invoke(t, cfg.httpclient, NewRequest(t, http.MethodPost, cfg.examURL, "/pretest",
		map[string]string{"userID": "u-int-test"}))
	CheckCode(t, resp, http.StatusOK)
	var pr pretestResponse
	Decode(t, resp, &pr)
	require.NotEmpty(t, pr.ID)
	assert.NotEmpty(t, pr.Text)
	assert.Contains(t, pr.Path, "audio-test/")

	resp = Invoke(t, cfg.httpclient, NewRequest(t, http.MethodGet, cfg.examURL, "pretest/"+pr.ID, nil))
	CheckCode(t, resp, http.StatusOK)
	var pr2 pretestResponse
	Decode(t, resp, &pr2)
	assert.Equal(t, pr.ID, pr2.ID)

	st := getStatus(t, pr.ID)
	assert.NotEqual(t, "NOT_FOUND", st.Status)
}
