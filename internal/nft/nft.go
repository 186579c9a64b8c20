// Package nft holds the data model shared by the resolvers, the thumbnail
// generator and the orchestrator.
package nft

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

type Type string

const (
	TypeFungible     Type = "FungibleESDT"
	TypeSemiFungible Type = "SemiFungibleESDT"
	TypeNonFungible  Type = "NonFungibleESDT"
	TypeMeta         Type = "MetaESDT"
)

// Nft is the on-chain reference as returned by the indexer. Metadata and
// Media are filled in by the orchestrator and never come from the indexer.
type Nft struct {
	Identifier string   `json:"identifier"`
	Collection string   `json:"collection"`
	Type       Type     `json:"type"`
	Attributes string   `json:"attributes,omitempty"`
	URIs       []string `json:"uris,omitempty"`

	Metadata Metadata `json:"metadata,omitempty"`
	Media    []Media  `json:"media,omitempty"`
}

// CollectionOf returns the collection part of the identifier: the first two
// dash separated segments (TICKER-random).
func (n *Nft) CollectionOf() string {
	if n.Collection != "" {
		return n.Collection
	}
	return CollectionFromIdentifier(n.Identifier)
}

// HasResolvableMedia reports whether a media refresh can produce anything.
func (n *Nft) HasResolvableMedia() bool {
	if n.Type == TypeMeta {
		return false
	}
	for _, uri := range n.URIs {
		if uri != "" {
			return true
		}
	}
	return false
}

func CollectionFromIdentifier(identifier string) string {
	parts := strings.Split(identifier, "-")
	if len(parts) < 2 {
		return identifier
	}
	return parts[0] + "-" + parts[1]
}

// Media describes one resolved off-chain asset.
type Media struct {
	URL          string `json:"url"`
	OriginalURL  string `json:"originalUrl"`
	ThumbnailURL string `json:"thumbnailUrl"`
	FileType     string `json:"fileType"`
	FileSize     int64  `json:"fileSize"`
}

// DefaultThumbnailPath is the placeholder served for assets that never get a
// generated thumbnail.
const DefaultThumbnailPath = "nfts/thumbnail/default.png"

// HasDefaultThumbnail reports whether m points at the placeholder thumbnail.
func (m Media) HasDefaultThumbnail() bool {
	return strings.HasSuffix(m.ThumbnailURL, "/"+DefaultThumbnailPath)
}

// Settings are the per-job processing flags.
type Settings struct {
	ForceRefreshMetadata  bool `json:"forceRefreshMetadata,omitempty"`
	ForceRefreshMedia     bool `json:"forceRefreshMedia,omitempty"`
	ForceRefreshThumbnail bool `json:"forceRefreshThumbnail,omitempty"`
	SkipRefreshThumbnail  bool `json:"skipRefreshThumbnail,omitempty"`
	// UploadAsset mirrors each original asset into the media bucket.
	UploadAsset           bool `json:"uploadAsset,omitempty"`
}

func (s Settings) AnyForced() bool {
	return s.ForceRefreshMetadata || s.ForceRefreshMedia || s.ForceRefreshThumbnail
}

// URLHash is the short content key used in thumbnail names: the first eight
// hex characters of the SHA-256 of the URL.
func URLHash(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])[:8]
}

// ThumbnailID names the thumbnail object for a given NFT and resolved URL.
func ThumbnailID(identifier, url string) string {
	return CollectionFromIdentifier(identifier) + "-" + URLHash(url)
}

// ThumbnailPath is the bucket key of the thumbnail object.
func ThumbnailPath(identifier, url string) string {
	return "nfts/thumbnail/" + ThumbnailID(identifier, url)
}
