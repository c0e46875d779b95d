package content

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"

	// Some libraries carry webp cover files despite the .jpg name;
	// registering the decoder lets imaging.Decode handle them.
	_ "golang.org/x/image/webp"

	"library-viewer/internal/formats"
	"library-viewer/internal/metrics"
)

const (
	// minThumbnailWidth and maxThumbnailWidth bound requested widths so
	// a single request cannot ask for a pathological resize.
	minThumbnailWidth = 16
	maxThumbnailWidth = 1200

	thumbnailJPEGQuality = 85
)

// CoverThumbnail returns the book's cover downscaled to the requested
// width, preserving aspect ratio. Covers narrower than the requested
// width are returned at their original size rather than upscaled.
func CoverThumbnail(libraryPath string, bookID, width int) (*Artifact, error) {
	if width < minThumbnailWidth {
		width = minThumbnailWidth
	}
	if width > maxThumbnailWidth {
		width = maxThumbnailWidth
	}

	full, err := Cover(libraryPath, bookID)
	if err != nil {
		return nil, err
	}

	img, err := imaging.Decode(bytes.NewReader(full.Data), imaging.AutoOrientation(true))
	if err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to decode cover for book %d: %w", bookID, err)
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(thumbnailJPEGQuality)); err != nil {
		metrics.ThumbnailGenerationsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to encode thumbnail for book %d: %w", bookID, err)
	}

	metrics.ThumbnailGenerationsTotal.WithLabelValues("success").Inc()
	return &Artifact{
		Data:     buf.Bytes(),
		MimeType: formats.CoverMimeType,
		Filename: coverFileName,
	}, nil
}
