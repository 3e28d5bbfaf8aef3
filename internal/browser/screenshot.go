package browser

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"github.com/go-rod/rod/lib/proto"
	"github.com/nfnt/resize"
)

// Screenshot captures a full-page PNG of the current tab, downscaled to the
// configured width bound.
func (s *Session) Screenshot() ([]byte, error) {
	data, err := s.page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("screenshot: %w", err)
	}
	return downscalePNG(data, s.opts.ScreenshotMaxWidth)
}

// downscalePNG re-encodes data at maxWidth preserving aspect ratio. Images
// already within the bound pass through untouched, as does a zero bound.
func downscalePNG(data []byte, maxWidth int) ([]byte, error) {
	if maxWidth <= 0 {
		return data, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode screenshot: %w", err)
	}
	if img.Bounds().Dx() <= maxWidth {
		return data, nil
	}

	resized := resize.Resize(uint(maxWidth), 0, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := png.Encode(&buf, resized); err != nil {
		return nil, fmt.Errorf("encode screenshot: %w", err)
	}
	return buf.Bytes(), nil
}
