// Package media stores uploaded images on Cloudinary.
package media

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

const (
	FolderPosts    = "confique/posts"
	FolderPayments = "confique/payments"
	FolderAvatars  = "confique/avatars"
)

var ErrDisabled = errors.New("media storage is not configured")

// Asset is an uploaded object: its public URL and the id needed to delete it.
type Asset struct {
	URL      string
	PublicID string
}

// Store is the object-storage collaborator used by the handlers.
type Store interface {
	Upload(ctx context.Context, dataURL, folder string) (Asset, error)
	Destroy(ctx context.Context, publicID string) error
}

// IsDataURL reports whether s is an inline base64 payload rather than an
// already hosted URL.
func IsDataURL(s string) bool {
	return strings.HasPrefix(s, "data:") && strings.Contains(s, ";base64,")
}

type Cloudinary struct {
	cld *cloudinary.Cloudinary
}

// New returns a Cloudinary-backed store, or a store that rejects every
// upload when cloudinaryURL is empty.
func New(cloudinaryURL string) (Store, error) {
	if cloudinaryURL == "" {
		return Disabled{}, nil
	}
	cld, err := cloudinary.NewFromURL(cloudinaryURL)
	if err != nil {
		return nil, fmt.Errorf("cloudinary configuration: %w", err)
	}
	cld.Config.URL.Secure = true
	return &Cloudinary{cld: cld}, nil
}

func (c *Cloudinary) Upload(ctx context.Context, dataURL, folder string) (Asset, error) {
	params := uploader.UploadParams{
		Folder:         folder,
		Transformation: transformationFor(folder),
	}
	res, err := c.cld.Upload.Upload(ctx, dataURL, params)
	if err != nil {
		return Asset{}, fmt.Errorf("upload to %s: %w", folder, err)
	}
	if res.Error.Message != "" {
		return Asset{}, fmt.Errorf("upload to %s: %s", folder, res.Error.Message)
	}
	return Asset{URL: res.SecureURL, PublicID: res.PublicID}, nil
}

func (c *Cloudinary) Destroy(ctx context.Context, publicID string) error {
	if publicID == "" {
		return nil
	}
	res, err := c.cld.Upload.Destroy(ctx, uploader.DestroyParams{PublicID: publicID})
	if err != nil {
		return fmt.Errorf("destroy %s: %w", publicID, err)
	}
	if res.Error.Message != "" {
		return fmt.Errorf("destroy %s: %s", publicID, res.Error.Message)
	}
	return nil
}

func transformationFor(folder string) string {
	if folder == FolderAvatars {
		return "c_fill,g_face,w_400,h_400,q_auto"
	}
	return "c_limit,w_1600,h_1600,q_auto"
}

// Disabled is used when no Cloudinary account is configured.
type Disabled struct{}

func (Disabled) Upload(context.Context, string, string) (Asset, error) {
	return Asset{}, ErrDisabled
}

func (Disabled) Destroy(context.Context, string) error { return nil }
