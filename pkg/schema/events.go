// pkg/schema/events.go
package schema

// ProcessSettings mirrors the per-job processing flags on the wire.
type ProcessSettings struct {
	ForceRefreshMetadata  bool `json:"forceRefreshMetadata,omitempty"`
	ForceRefreshMedia     bool `json:"forceRefreshMedia,omitempty"`
	ForceRefreshThumbnail bool `json:"forceRefreshThumbnail,omitempty"`
	SkipRefreshThumbnail  bool `json:"skipRefreshThumbnail,omitempty"`
	UploadAsset           bool `json:"uploadAsset,omitempty"`
}

// NftReference is the on-chain view of an NFT carried inside a job so the
// worker can skip the indexer lookup.
type NftReference struct {
	Identifier string   `json:"identifier"`
	Collection string   `json:"collection,omitempty"`
	Type       string   `json:"type"`
	Attributes string   `json:"attributes,omitempty"`
	URIs       []string `json:"uris,omitempty"`
}

// ProcessNft is the job message consumed by the worker.
type ProcessNft struct {
	Identifier string          `json:"identifier"`
	Settings   ProcessSettings `json:"settings"`
	Nft        *NftReference   `json:"nft,omitempty"`
}

type ProcessingStage string

const (
	StageMetadata   ProcessingStage = "metadata"
	StageMedia      ProcessingStage = "media"
	StageThumbnails ProcessingStage = "thumbnails"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

type FailureType string

const (
	FailureTypeRetryable  FailureType = "retryable"
	FailureTypePermanent  FailureType = "permanent"
	FailureTypeValidation FailureType = "validation"
)

type ThumbnailResult struct {
	URL          string `json:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty"`
	Result       string `json:"result"`
}

// ProcessDone is published after every job attempt.
type ProcessDone struct {
	JobID             string            `json:"job_id"`
	Identifier        string            `json:"identifier"`
	Attempt           int               `json:"attempt"`
	NeedsWork         bool              `json:"needs_work"`
	MetadataRefreshed bool              `json:"metadata_refreshed,omitempty"`
	MediaRefreshed    bool              `json:"media_refreshed,omitempty"`
	Thumbnails        []ThumbnailResult `json:"thumbnails,omitempty"`
	Stage             ProcessingStage   `json:"stage"`
	ProcessingTimeMs  int64             `json:"processing_time_ms"`
	Error             string            `json:"error,omitempty"`
	FailureType       FailureType       `json:"failure_type,omitempty"`
	HappenedAt        int64             `json:"happened_at"`
}

// CacheRefresh tells API nodes that a cache key was rewritten.
type CacheRefresh struct {
	Key        string `json:"key"`
	TTLSeconds int64  `json:"ttl_seconds"`
	HappenedAt int64  `json:"happened_at"`
}
