package config

import (
	"sort"
	"strings"

	"github.com/EshelEyni/Chirper-sub001/pkg/logx"
)

// SummarizeConfigChange returns a compact list of changed sections and safe
// structured attrs for logging. Secrets (API keys, tokens, credentials) are
// only ever reported as "set"/"unset".
func SummarizeConfigChange(oldCfg, newCfg *Config) ([]string, []logx.Field) {
	if oldCfg == nil {
		oldCfg = &Config{}
	}
	if newCfg == nil {
		newCfg = &Config{}
	}

	changed := make([]string, 0, 7)
	attrs := make([]logx.Field, 0, 24)

	if oldCfg.Logging != newCfg.Logging {
		changed = append(changed, "logging")
		attrs = append(attrs,
			logx.String("logging.level", newCfg.Logging.Level),
			logx.Bool("logging.console", newCfg.Logging.Console),
			logx.String("logging.format", newCfg.Logging.Format),
			logx.Bool("logging.file_enabled", newCfg.Logging.File.Enabled),
		)
	}

	if oldCfg.Storage != newCfg.Storage {
		changed = append(changed, "storage")
		attrs = append(attrs,
			logx.String("storage.driver", strings.TrimSpace(newCfg.Storage.Driver)),
			logx.Bool("storage.path_set", strings.TrimSpace(newCfg.Storage.Path) != ""),
			logx.String("storage.busy_timeout", strings.TrimSpace(newCfg.Storage.BusyTimeout)),
		)
	}

	if oldCfg.Scheduler != newCfg.Scheduler {
		changed = append(changed, "scheduler")
		attrs = append(attrs,
			logx.Bool("scheduler.enabled", newCfg.Scheduler.Enabled),
			logx.String("scheduler.spec", strings.TrimSpace(newCfg.Scheduler.Spec)),
			logx.Int("scheduler.batch_size", newCfg.Scheduler.BatchSize),
			logx.String("scheduler.timezone", strings.TrimSpace(newCfg.Scheduler.Timezone)),
		)
	}

	og, ng := oldCfg.Gemini, newCfg.Gemini
	if og.APIKey != ng.APIKey || og.BaseURL != ng.BaseURL || og.TextModel != ng.TextModel ||
		og.ImageModel != ng.ImageModel || !sameFloatPtr(og.Temperature, ng.Temperature) ||
		og.RatePerSec != ng.RatePerSec || og.Burst != ng.Burst || og.Timeout != ng.Timeout {
		changed = append(changed, "gemini")
		attrs = append(attrs,
			logx.Bool("gemini.api_key_set", strings.TrimSpace(ng.APIKey) != ""),
			logx.String("gemini.text_model", ng.TextModel),
			logx.String("gemini.image_model", ng.ImageModel),
			logx.Float64("gemini.rate_per_sec", ng.RatePerSec),
		)
	}

	if oldCfg.ImageHost != newCfg.ImageHost {
		changed = append(changed, "image_host")
		attrs = append(attrs,
			logx.String("image_host.bucket", newCfg.ImageHost.Bucket),
			logx.String("image_host.region", newCfg.ImageHost.Region),
			logx.Bool("image_host.endpoint_set", strings.TrimSpace(newCfg.ImageHost.Endpoint) != ""),
			logx.Bool("image_host.static_credentials", strings.TrimSpace(newCfg.ImageHost.AccessKey) != ""),
		)
	}

	if oldCfg.YouTube != newCfg.YouTube {
		changed = append(changed, "youtube")
		attrs = append(attrs,
			logx.Bool("youtube.api_key_set", strings.TrimSpace(newCfg.YouTube.APIKey) != ""),
			logx.Float64("youtube.rate_per_sec", newCfg.YouTube.RatePerSec),
		)
	}

	if oldCfg.Metrics != newCfg.Metrics {
		changed = append(changed, "metrics")
		attrs = append(attrs,
			logx.Bool("metrics.enabled", newCfg.Metrics.Enabled),
			logx.String("metrics.addr", strings.TrimSpace(newCfg.Metrics.Addr)),
			logx.Bool("metrics.token_set", strings.TrimSpace(newCfg.Metrics.Token) != ""),
			logx.Bool("metrics.pprof", newCfg.Metrics.Pprof),
		)
	}

	sort.Strings(changed)
	return changed, attrs
}

func sameFloatPtr(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
