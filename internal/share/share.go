/*
Copyright 2024 Blnk Finance Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package share renders the before and after image used for social sharing.
package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	_ "golang.org/x/image/webp"
)

const (
	Width  = 1200
	Height = 800

	dividerWidth   = 6
	maxLabelLength = 80
	maxImageSize   = 20 << 20
	maxPixels      = 40_000_000
)

var (
	ErrMissingGenerated = errors.New("generated image url is required")

	dividerColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	labelBacking = color.RGBA{A: 160}
)

// FetchError reports a source image that could not be downloaded or decoded.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type Composer struct {
	client *resty.Client
}

func NewComposer(fetchTimeout time.Duration) *Composer {
	if fetchTimeout <= 0 {
		fetchTimeout = 15 * time.Second
	}
	return &Composer{
		client: resty.New().
			SetTimeout(fetchTimeout).
			SetLogger(logrus.StandardLogger()).
			SetHeader("Accept", "image/*"),
	}
}

// Compose fetches the images and renders them as a JPEG. originalURL and label are optional.
func (c *Composer) Compose(ctx context.Context, generatedURL, originalURL, label string) ([]byte, error) {
	if generatedURL == "" {
		return nil, ErrMissingGenerated
	}

	generated, err := c.fetch(ctx, generatedURL)
	if err != nil {
		return nil, err
	}

	var original image.Image
	if originalURL != "" {
		original, err = c.fetch(ctx, originalURL)
		if err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, Render(generated, original, label), &jpeg.Options{Quality: 90}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (c *Composer) fetch(ctx context.Context, url string) (image.Image, error) {
	resp, err := c.client.R().SetContext(ctx).SetDoNotParseResponse(true).Get(url)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	body := resp.RawBody()
	defer body.Close()

	if !resp.IsSuccess() {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status %s", resp.Status())}
	}

	data, err := io.ReadAll(io.LimitReader(body, maxImageSize+1))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if len(data) > maxImageSize {
		return nil, &FetchError{URL: url, Err: errors.New("image too large")}
	}
	return decode(url, data)
}

// decode checks the declared dimensions before decoding so a small file cannot
// claim a huge canvas.
func decode(url string, data []byte) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > maxPixels {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("image dimensions %dx%d are not supported", cfg.Width, cfg.Height)}
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	return img, nil
}

// Render lays the images out on a Width x Height canvas. With an original the
// canvas is split in half, original on the left, with a white divider at the middle.
func Render(generated, original image.Image, label string) *image.RGBA {
	canvas := image.NewRGBA(image.Rect(0, 0, Width, Height))

	if original == nil {
		coverFit(canvas, canvas.Bounds(), generated)
	} else {
		half := Width / 2
		coverFit(canvas, image.Rect(0, 0, half, Height), original)
		coverFit(canvas, image.Rect(half, 0, Width, Height), generated)

		divider := image.Rect(half-dividerWidth/2, 0, half+dividerWidth/2, Height)
		draw.Draw(canvas, divider, image.NewUniform(dividerColor), image.Point{}, draw.Src)
	}

	if label != "" {
		drawLabel(canvas, label)
	}
	return canvas
}

// coverFit scales src to fill dst completely, cropping the overflow around the centre.
func coverFit(dst *image.RGBA, rect image.Rectangle, src image.Image) {
	sb := src.Bounds()
	if sb.Empty() {
		return
	}

	scale := max(float64(rect.Dx())/float64(sb.Dx()), float64(rect.Dy())/float64(sb.Dy()))
	cropW := int(float64(rect.Dx()) / scale)
	cropH := int(float64(rect.Dy()) / scale)
	cropW = min(max(cropW, 1), sb.Dx())
	cropH = min(max(cropH, 1), sb.Dy())

	x0 := sb.Min.X + (sb.Dx()-cropW)/2
	y0 := sb.Min.Y + (sb.Dy()-cropH)/2
	crop := image.Rect(x0, y0, x0+cropW, y0+cropH)

	draw.CatmullRom.Scale(dst, rect, src, crop, draw.Src, nil)
}

func drawLabel(canvas *image.RGBA, label string) {
	if len(label) > maxLabelLength {
		label = label[:maxLabelLength]
	}

	face := basicfont.Face7x13
	d := &font.Drawer{Dst: canvas, Src: image.White, Face: face}
	textWidth := d.MeasureString(label).Ceil()

	const padding = 12
	box := image.Rect(24, Height-24-face.Height-2*padding, 24+textWidth+2*padding, Height-24)
	draw.Draw(canvas, box, image.NewUniform(labelBacking), image.Point{}, draw.Over)

	d.Dot = fixed.P(box.Min.X+padding, box.Max.Y-padding-face.Descent)
	d.DrawString(label)
}
