package media

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/eargollo/mediasort/internal/model"
)

// Provider is the concrete MetadataProvider: it extracts image dimensions
// and EXIF fields via ExtractImageMeta and narrows them down to the
// pipeline's minimal Metadata shape. Video files are left undescribed —
// this package has no codec-probing dependency in its stack, so Codec is
// never populated.
type Provider struct{}

// NewProvider creates a metadata Provider. It holds no state.
func NewProvider() *Provider {
	return &Provider{}
}

// Describe implements model's MetadataProvider collaborator interface.
// Non-image files return a zero Metadata and no error.
func (p *Provider) Describe(_ context.Context, f model.MediaFile) (model.Metadata, error) {
	ext := strings.ToLower(filepath.Ext(f.Path))
	if !imageDecodableForMeta(ext) {
		return model.Metadata{}, nil
	}

	meta := ExtractImageMeta(f.Path)
	return model.Metadata{
		Width:       meta.Width,
		Height:      meta.Height,
		CameraModel: meta.CameraModel,
	}, nil
}

// imageDecodableForMeta mirrors the header-decode support of
// image.DecodeConfig plus the registered image/* and golang.org/x/image/webp
// codecs, which is everything ExtractImageMeta can read dimensions from.
func imageDecodableForMeta(ext string) bool {
	switch ext {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp":
		return true
	default:
		return false
	}
}
