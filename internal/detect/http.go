package detect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"image/jpeg"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/edgesentinel/alertgate/internal/httputil"
	"github.com/edgesentinel/alertgate/internal/video"
)

// HTTPClientConfig configures the HTTP detector client.
type HTTPClientConfig struct {
	// Endpoint is the inference service base URL; frames are POSTed to
	// Endpoint + "/predict".
	Endpoint string
	// Confidence is the minimum score a prediction must reach.
	Confidence float64
	// TargetClasses limits results to these class names (case-insensitive).
	// Empty means every class is accepted.
	TargetClasses []string
	// Timeout bounds one inference round trip. Zero selects 10s.
	Timeout time.Duration
	// JPEGQuality for the encoded frame, 1-100. Zero selects 80.
	JPEGQuality int
}

// HTTPClient sends JPEG-encoded frames to an inference service and decodes
// its predictions. The wire format is a multipart form upload returning
// [{"class_id": ..., "class": ..., "score": ..., "box": [x1,y1,x2,y2]}, ...].
type HTTPClient struct {
	cfg     HTTPClientConfig
	client  httputil.HTTPClient
	targets map[string]bool
}

// NewHTTPClient creates a detector client. A nil httpClient selects a
// standard client with the configured timeout.
func NewHTTPClient(cfg HTTPClientConfig, httpClient httputil.HTTPClient) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.JPEGQuality <= 0 {
		cfg.JPEGQuality = 80
	}
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(&http.Client{Timeout: cfg.Timeout})
	}
	targets := make(map[string]bool, len(cfg.TargetClasses))
	for _, c := range cfg.TargetClasses {
		targets[strings.ToLower(c)] = true
	}
	return &HTTPClient{cfg: cfg, client: httpClient, targets: targets}
}

// prediction mirrors the inference service's response element.
type prediction struct {
	ClassID int       `json:"class_id"`
	Class   string    `json:"class"`
	Score   float64   `json:"score"`
	Box     []float64 `json:"box"`
}

// Detect encodes the frame as JPEG, uploads it, and converts the service's
// predictions into Detections, applying the confidence and class filters.
func (c *HTTPClient) Detect(ctx context.Context, frame *video.Frame) ([]Detection, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="frame.jpg"`)
	h.Set("Content-Type", "image/jpeg")
	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, fmt.Errorf("create form part: %w", err)
	}
	if err := jpeg.Encode(part, frame.ToImage(), &jpeg.Options{Quality: c.cfg.JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encode frame: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/predict", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("inference service returned %s: %s", resp.Status, body)
	}

	var preds []prediction
	if err := json.NewDecoder(resp.Body).Decode(&preds); err != nil {
		return nil, fmt.Errorf("decode predictions: %w", err)
	}

	now := time.Now()
	kept := lo.Filter(preds, func(p prediction, _ int) bool {
		if p.Score < c.cfg.Confidence || len(p.Box) != 4 {
			return false
		}
		return len(c.targets) == 0 || c.targets[strings.ToLower(p.Class)]
	})
	return lo.Map(kept, func(p prediction, _ int) Detection {
		return Detection{
			ClassID:    p.ClassID,
			ClassName:  strings.ToLower(p.Class),
			Confidence: p.Score,
			Box: [4]int{
				int(p.Box[0]), int(p.Box[1]),
				int(p.Box[2]), int(p.Box[3]),
			},
			Timestamp: now,
		}
	}), nil
}
