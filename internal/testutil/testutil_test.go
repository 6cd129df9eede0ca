package testutil

import (
	"net/http"
	"testing"
)

func TestAssertStatusCodeMatch(t *testing.T) {
	AssertStatusCode(t, http.StatusOK, http.StatusOK)
}

func TestNewTestRequest(t *testing.T) {
	req := NewTestRequest(http.MethodGet, "/api/stats?days=2")
	if req.Method != http.MethodGet {
		t.Errorf("method = %s", req.Method)
	}
	if req.URL.Path != "/api/stats" {
		t.Errorf("path = %s", req.URL.Path)
	}
	if req.URL.Query().Get("days") != "2" {
		t.Errorf("query = %v", req.URL.Query())
	}
}

func TestNewTestRecorder(t *testing.T) {
	w := NewTestRecorder()
	w.WriteHeader(http.StatusCreated)
	if w.Code != http.StatusCreated {
		t.Errorf("code = %d", w.Code)
	}
}
