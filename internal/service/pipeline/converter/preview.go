package converter

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

// previewRenderer produces page preview images: resized thumbnails for
// image content, a rendered first page for text content.
type previewRenderer struct{}

func newPreviewRenderer() *previewRenderer {
	return &previewRenderer{}
}

// resizeImage decodes an image and fits it inside maxWidth x maxHeight
func (p *previewRenderer) resizeImage(data []byte, maxWidth, maxHeight int) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	thumb := imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	return buf.Bytes(), nil
}

// renderTextPage draws the first page worth of text onto a white canvas
func (p *previewRenderer) renderTextPage(text string, width, height int) ([]byte, error) {
	if width <= 0 {
		width = 640
	}
	if height <= 0 {
		height = 900
	}

	dc := gg.NewContext(width, height)
	dc.SetRGB(1, 1, 1)
	dc.Clear()
	dc.SetRGB(0.1, 0.1, 0.1)
	dc.SetFontFace(basicfont.Face7x13)

	const margin = 20.0
	const lineHeight = 16.0
	maxChars := (width - 2*int(margin)) / 7 // Face7x13 advance is 7px
	if maxChars < 8 {
		maxChars = 8
	}

	y := margin + lineHeight
	for _, line := range strings.Split(text, "\n") {
		if y > float64(height)-margin {
			break
		}
		if line == "" {
			y += lineHeight
			continue
		}
		for len(line) > 0 && y <= float64(height)-margin {
			n := len(line)
			if n > maxChars {
				n = maxChars
			}
			dc.DrawString(line[:n], margin, y)
			line = line[n:]
			y += lineHeight
		}
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, dc.Image(), imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode preview: %w", err)
	}

	return buf.Bytes(), nil
}
