package collectors

import (
	"net/http"

	"github.com/streamlens/streamlens/internal/cache"
	"github.com/streamlens/streamlens/internal/domain/collect"
	"github.com/streamlens/streamlens/internal/domain/job"
)

// New builds the closed set of platform collectors sharing one HTTP
// client and one response cache. The scheduler depends only on the
// collect.Collector contract.
func New(cfg Config, httpc *http.Client, c *cache.Cache) map[job.Platform]collect.Collector {
	return map[job.Platform]collect.Collector{
		job.PlatformTwitch:  NewTwitch(cfg, httpc, c),
		job.PlatformTwitter: NewTwitter(cfg, httpc, c),
		job.PlatformYouTube: NewYouTube(cfg, httpc, c),
		job.PlatformReddit:  NewReddit(cfg, httpc, c),
	}
}
