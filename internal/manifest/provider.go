package manifest

import (
	"context"
	"fmt"
	"sync"

	"github.com/qs3c/slide_review_server/config"
)

const (
	SourceLocal = "local"
	SourceOSS   = "oss"
)

// CachingProvider manifest 生成后不再变化，命中结果常驻内存
type CachingProvider struct {
	next Provider

	mu    sync.RWMutex
	cache map[string]*Manifest
}

func NewCachingProvider(next Provider) *CachingProvider {
	return &CachingProvider{
		next:  next,
		cache: make(map[string]*Manifest),
	}
}

func (p *CachingProvider) Get(ctx context.Context, imageID string) (*Manifest, error) {
	p.mu.RLock()
	m, ok := p.cache[imageID]
	p.mu.RUnlock()
	if ok {
		return m, nil
	}

	m, err := p.next.Get(ctx, imageID)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	p.cache[imageID] = m
	p.mu.Unlock()
	return m, nil
}

// NewProvider 根据配置创建带缓存的 manifest 来源
func NewProvider(cfg *config.ManifestConfig) (Provider, error) {
	switch cfg.Source {
	case "", SourceLocal:
		return NewCachingProvider(NewFileProvider(cfg.Dir)), nil
	case SourceOSS:
		p, err := NewOSSProvider(&cfg.OSS)
		if err != nil {
			return nil, err
		}
		return NewCachingProvider(p), nil
	default:
		return nil, fmt.Errorf("unknown manifest source: %s", cfg.Source)
	}
}
