package notify

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/edgesentinel/alertgate/internal/httputil"
	"github.com/edgesentinel/alertgate/internal/monitoring"
)

// defaultAPIBase is the Telegram Bot API root; tests point this at a local
// server.
const defaultAPIBase = "https://api.telegram.org"

// Telegram delivers alerts through the Telegram Bot API: sendMessage for
// text-only alerts, sendPhoto with a multipart upload when a snapshot exists.
type Telegram struct {
	apiBase string
	token   string
	chatID  string
	client  httputil.HTTPClient
}

// NewTelegram creates a Telegram notifier. A nil httpClient selects a
// standard client with a timeout generous enough for photo uploads.
func NewTelegram(token, chatID string, httpClient httputil.HTTPClient) (*Telegram, error) {
	if token == "" || chatID == "" {
		return nil, fmt.Errorf("telegram notifier requires a bot token and chat id")
	}
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(&http.Client{Timeout: 30 * time.Second})
	}
	return &Telegram{
		apiBase: defaultAPIBase,
		token:   token,
		chatID:  chatID,
		client:  httpClient,
	}, nil
}

// SetAPIBase overrides the API root. Tests use this with httptest servers.
func (t *Telegram) SetAPIBase(base string) {
	t.apiBase = strings.TrimRight(base, "/")
}

// Notify sends the alert. When imagePath names a readable file the snapshot
// is attached as a photo with the text as caption; otherwise a plain message
// goes out. Failures are logged and reported as not delivered.
func (t *Telegram) Notify(ctx context.Context, text, imagePath string) bool {
	var err error
	if imagePath != "" {
		if _, statErr := os.Stat(imagePath); statErr == nil {
			err = t.sendPhoto(ctx, imagePath, text)
		} else {
			err = t.sendText(ctx, text)
		}
	} else {
		err = t.sendText(ctx, text)
	}
	if err != nil {
		monitoring.Logf("notify: telegram delivery failed: %v", err)
		return false
	}
	return true
}

func (t *Telegram) sendText(ctx context.Context, text string) error {
	form := url.Values{}
	form.Set("chat_id", t.chatID)
	form.Set("text", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.methodURL("sendMessage"), strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.do(req)
}

func (t *Telegram) sendPhoto(ctx context.Context, photoPath, caption string) error {
	f, err := os.Open(photoPath)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", t.chatID); err != nil {
		return err
	}
	if caption != "" {
		if err := writer.WriteField("caption", caption); err != nil {
			return err
		}
	}
	part, err := writer.CreateFormFile("photo", "snapshot.jpg")
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}
	if err := writer.Close(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		t.methodURL("sendPhoto"), &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return t.do(req)
}

func (t *Telegram) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", t.apiBase, t.token, method)
}

func (t *Telegram) do(req *http.Request) error {
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram API returned %s: %s", resp.Status, body)
	}
	return nil
}
