// Package constants names the Redis stream the JobRunner publishes its
// lifecycle events to.
package constants

const (
	// StreamDedupJobs is the stream job lifecycle events are published to.
	StreamDedupJobs = "stream:dedup_jobs"

	// GroupDedupDashboard is the consumer group an (out-of-scope) admin
	// dashboard would use to tail StreamDedupJobs.
	GroupDedupDashboard = "group:dedup_dashboard"
)
