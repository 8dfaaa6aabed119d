package metrics

import "time"

// CacheLookup records a durable cache lookup. result is "hit" or "miss".
func CacheLookup(action, result string) {
	if !enabled {
		return
	}
	cacheLookupTotal.WithLabelValues(action, result).Inc()
}

// TransientCacheLookup records an in-memory cache lookup.
func TransientCacheLookup(result string) {
	if !enabled {
		return
	}
	transientLookupTotal.WithLabelValues(result).Inc()
}

// CacheWrite records an attempt to persist a verified response.
func CacheWrite(action, status string) {
	if !enabled {
		return
	}
	cacheWriteTotal.WithLabelValues(action, status).Inc()
}

// Invalidation records removed durable entries.
func Invalidation(provider string, removed int) {
	if !enabled || removed <= 0 {
		return
	}
	invalidationTotal.WithLabelValues(provider).Add(float64(removed))
}

// UpstreamRequest records one explorer call. status is the HTTP status code
// or "error" when no response arrived.
func UpstreamRequest(provider, status string, d time.Duration) {
	if !enabled {
		return
	}
	upstreamRequestTotal.WithLabelValues(provider, status).Inc()
	upstreamDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// OnChainLookup records a constructor argument lookup against an RPC node.
func OnChainLookup(provider, result string) {
	if !enabled {
		return
	}
	onChainLookupTotal.WithLabelValues(provider, result).Inc()
}
