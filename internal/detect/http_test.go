package detect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/edgesentinel/alertgate/internal/video"
)

func testInferenceServer(t *testing.T, preds []map[string]interface{}) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		if ct := r.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/form-data") {
			t.Errorf("content type = %q, want multipart/form-data", ct)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		defer file.Close()
		if header.Filename != "frame.jpg" {
			t.Errorf("filename = %q, want frame.jpg", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(preds)
	}))
}

func grayFrame(t *testing.T) *video.Frame {
	t.Helper()
	f := video.NewFrame(32, 32, 1)
	for i := range f.Pix {
		f.Pix[i] = 128
	}
	return f
}

func TestHTTPClientDecodesAndFiltersPredictions(t *testing.T) {
	srv := testInferenceServer(t, []map[string]interface{}{
		{"class_id": 15, "class": "Cat", "score": 0.91, "box": []float64{10, 20, 100, 200}},
		{"class": "cat", "score": 0.40, "box": []float64{1, 1, 5, 5}},   // below confidence
		{"class": "dog", "score": 0.95, "box": []float64{5, 5, 50, 50}}, // not a target
	})
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{
		Endpoint:      srv.URL,
		Confidence:    0.55,
		TargetClasses: []string{"cat"},
	}, nil)

	got, err := c.Detect(context.Background(), grayFrame(t))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 detection after filtering, got %d: %+v", len(got), got)
	}
	d := got[0]
	if d.ClassName != "cat" {
		t.Errorf("class = %q, want lowercased cat", d.ClassName)
	}
	if d.ClassID != 15 {
		t.Errorf("class id = %d, want 15", d.ClassID)
	}
	if d.Confidence != 0.91 {
		t.Errorf("confidence = %v, want 0.91", d.Confidence)
	}
	if d.Box != [4]int{10, 20, 100, 200} {
		t.Errorf("box = %v", d.Box)
	}
}

func TestHTTPClientEmptyTargetListAcceptsEveryClass(t *testing.T) {
	srv := testInferenceServer(t, []map[string]interface{}{
		{"class": "cat", "score": 0.9, "box": []float64{0, 0, 10, 10}},
		{"class": "dog", "score": 0.9, "box": []float64{0, 0, 10, 10}},
	})
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL, Confidence: 0.5}, nil)
	got, err := c.Detect(context.Background(), grayFrame(t))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both classes kept, got %d", len(got))
	}
}

func TestHTTPClientDropsMalformedBoxes(t *testing.T) {
	srv := testInferenceServer(t, []map[string]interface{}{
		{"class": "cat", "score": 0.9, "box": []float64{0, 0, 10}},
	})
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL, Confidence: 0.5}, nil)
	got, err := c.Detect(context.Background(), grayFrame(t))
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("3-element box must be dropped, got %+v", got)
	}
}

func TestHTTPClientSurfacesServiceErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model loading", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewHTTPClient(HTTPClientConfig{Endpoint: srv.URL}, nil)
	if _, err := c.Detect(context.Background(), grayFrame(t)); err == nil {
		t.Fatal("expected an error for a 503 response")
	}
}
