package landing

import (
	"context"
	"fmt"

	"github.com/giobale/dog-breed-explorer/internal/config"
)

// Open selects a Store from configuration. An empty driver disables archiving and returns nil.
func Open(ctx context.Context, cfg config.LandingConfig) (Store, error) {
	switch Driver(cfg.Driver) {
	case "":
		return nil, nil
	case DriverFilesystem:
		return NewFilesystem(cfg.FSRoot)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			PathStyle: cfg.S3PathStyle,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown landing driver %s", cfg.Driver)
	}
}
