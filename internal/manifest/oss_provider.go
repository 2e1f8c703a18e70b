package manifest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"

	"github.com/qs3c/slide_review_server/config"
)

// OSSProvider 从瓦片所在的 OSS bucket 读取 manifest
type OSSProvider struct {
	bucket *oss.Bucket
	prefix string
}

func NewOSSProvider(cfg *config.OSSConfig) (*OSSProvider, error) {
	client, err := oss.New(cfg.Endpoint, cfg.AccessKeyID, cfg.AccessKeySecret)
	if err != nil {
		return nil, fmt.Errorf("failed to create OSS client: %w", err)
	}

	bucket, err := client.Bucket(cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to get bucket: %w", err)
	}

	return &OSSProvider{bucket: bucket, prefix: cfg.Prefix}, nil
}

// ObjectKey <prefix>/<imageID>/manifest.json
func (p *OSSProvider) ObjectKey(imageID string) string {
	return path.Join(p.prefix, imageID, manifestFileName)
}

func (p *OSSProvider) Get(ctx context.Context, imageID string) (*Manifest, error) {
	if err := validateImageID(imageID); err != nil {
		return nil, err
	}

	key := p.ObjectKey(imageID)
	body, err := p.bucket.GetObject(key, oss.WithContext(ctx))
	if err != nil {
		if isNoSuchKey(err) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, imageID)
		}
		return nil, fmt.Errorf("failed to get manifest %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest %s: %w", key, err)
	}

	return Parse(data)
}

func isNoSuchKey(err error) bool {
	var svcErr oss.ServiceError
	if errors.As(err, &svcErr) {
		return svcErr.StatusCode == http.StatusNotFound || svcErr.Code == "NoSuchKey"
	}
	return false
}
