package video

import (
	"fmt"
	"net/url"
	"strconv"
)

// Open resolves a camera URL into a FrameSource. The synthetic scheme
// ("synthetic://640x480?fps=15", dimensions optional) is served in-process; any
// other scheme needs a transport this build does not carry and is rejected at
// startup rather than at first read.
func Open(rawURL string) (FrameSource, error) {
	if rawURL == "" {
		return nil, fmt.Errorf("camera url not configured")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse camera url: %w", err)
	}
	if u.Scheme != "synthetic" {
		return nil, fmt.Errorf("no frame source transport for scheme %q", u.Scheme)
	}

	width, height, fps := 640, 480, 15
	if u.Host != "" {
		if _, err := fmt.Sscanf(u.Host, "%dx%d", &width, &height); err != nil {
			return nil, fmt.Errorf("synthetic source dimensions %q: want WxH", u.Host)
		}
	}
	if f := u.Query().Get("fps"); f != "" {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 {
			return nil, fmt.Errorf("synthetic source fps %q", f)
		}
		fps = v
	}
	return NewSyntheticSource(width, height, fps), nil
}
