package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
	Timeout   time.Duration
}

// Enabled reports whether every credential is present.
func (c Config) Enabled() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Storage stores action log attachments in Cloudinary.
type Storage struct {
	client  *cloudinary.Cloudinary
	folder  string
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time
}

// New constructs a Cloudinary-backed attachment store.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}
	cld.Config.URL.Secure = true

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Storage{
		client:  cld,
		folder:  strings.Trim(cfg.Folder, "/"),
		timeout: timeout,
		logger:  logger.With().Str("component", "cloudinary_storage").Logger(),
		now:     time.Now,
	}, nil
}

// Upload stores the object as a raw asset and returns its secure URL. Raw delivery keeps
// documents byte-identical instead of letting Cloudinary transcode them.
func (s *Storage) Upload(ctx context.Context, name string, reader io.Reader) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	publicID := PublicID(name, s.now())
	params := uploader.UploadParams{
		Folder:         s.folder,
		PublicID:       publicID,
		ResourceType:   "raw",
		UniqueFilename: api.Bool(false),
		Overwrite:      api.Bool(false),
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload attachment: %w", err)
	}
	if result.Error.Message != "" {
		return "", fmt.Errorf("cloudinary rejected attachment: %s", result.Error.Message)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Int("bytes", result.Bytes).
		Str("folder", path.Clean("/"+s.folder)).
		Msg("attachment stored in cloudinary")

	return result.SecureURL, nil
}

// PublicID derives a collision-resistant public id that keeps the file extension, which
// raw assets need for correct delivery.
func PublicID(name string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '_' {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "attachment"
	}

	return fmt.Sprintf("%s-%d%s", base, now.UnixNano(), ext)
}
