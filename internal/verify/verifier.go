package verify

import (
	"time"

	"github.com/qs3c/slide_review_server/internal/manifest"
	"github.com/qs3c/slide_review_server/internal/repository"
)

// DefaultAlignmentSamples 每个倍率抽样的格子数
const DefaultAlignmentSamples = 25

// viewportTolerance 视口中心判定允许的误差（level-0 像素）
const viewportTolerance = 10.0

// Verifier 对已持久化的评审数据做离线校验
type Verifier struct {
	sessions  *repository.SessionRepository
	events    *repository.EventRepository
	manifests manifest.Provider
	samples   int
	now       func() time.Time
}

func NewVerifier(sessions *repository.SessionRepository, events *repository.EventRepository, manifests manifest.Provider) *Verifier {
	return &Verifier{
		sessions:  sessions,
		events:    events,
		manifests: manifests,
		samples:   DefaultAlignmentSamples,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// SetSamples 设置每个倍率的抽样数
func (v *Verifier) SetSamples(n int) {
	if n > 0 {
		v.samples = n
	}
}
