package upload

import (
	"bytes"
	"fmt"
	"image"
	"io"
	"os"

	// Register the decoders behind the declared-type allow list. A file
	// whose bytes decode as anything else is rejected as mislabeled.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/disintegration/imaging"
)

const (
	canonicalImageExt  = ".jpg"
	canonicalImageMime = "image/jpeg"
)

var decodableFormats = map[string]struct{}{
	"jpeg": {},
	"png":  {},
	"webp": {},
	"gif":  {},
}

// normalizeImage reads a staged raster image, applies the embedded EXIF
// orientation, downscales to the configured width (never upscales) and
// re-encodes it as JPEG at the configured quality.
func (p *Pipeline) normalizeImage(stagedPath string) ([]byte, error) {
	f, err := os.Open(stagedPath) //nolint:gosec // staged under the pipeline temp dir
	if err != nil {
		return nil, &StorageError{Op: "open", Path: stagedPath, Err: err}
	}
	defer func() { _ = f.Close() }()

	_, format, err := image.DecodeConfig(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if _, ok := decodableFormats[format]; !ok {
		return nil, fmt.Errorf("%w: decoded as %s", ErrCorruptImage, format)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, &StorageError{Op: "seek", Path: stagedPath, Err: err}
	}

	img, err := imaging.Decode(f, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptImage, err)
	}
	if img.Bounds().Dx() > p.maxWidth {
		img = imaging.Resize(img, p.maxWidth, 0, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(p.quality)); err != nil {
		return nil, &StorageError{Op: "encode", Path: stagedPath, Err: err}
	}
	return buf.Bytes(), nil
}
