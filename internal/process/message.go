package process

import (
	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/pkg/schema"
)

func SettingsFromMessage(s schema.ProcessSettings) nft.Settings {
	return nft.Settings{
		ForceRefreshMetadata:  s.ForceRefreshMetadata,
		ForceRefreshMedia:     s.ForceRefreshMedia,
		ForceRefreshThumbnail: s.ForceRefreshThumbnail,
		SkipRefreshThumbnail:  s.SkipRefreshThumbnail,
		UploadAsset:           s.UploadAsset,
	}
}

func SettingsToMessage(s nft.Settings) schema.ProcessSettings {
	return schema.ProcessSettings{
		ForceRefreshMetadata:  s.ForceRefreshMetadata,
		ForceRefreshMedia:     s.ForceRefreshMedia,
		ForceRefreshThumbnail: s.ForceRefreshThumbnail,
		SkipRefreshThumbnail:  s.SkipRefreshThumbnail,
		UploadAsset:           s.UploadAsset,
	}
}

func NftFromReference(ref *schema.NftReference) *nft.Nft {
	return &nft.Nft{
		Identifier: ref.Identifier,
		Collection: ref.Collection,
		Type:       nft.Type(ref.Type),
		Attributes: ref.Attributes,
		URIs:       append([]string(nil), ref.URIs...),
	}
}

func ReferenceFromNft(n *nft.Nft) *schema.NftReference {
	return &schema.NftReference{
		Identifier: n.Identifier,
		Collection: n.Collection,
		Type:       string(n.Type),
		Attributes: n.Attributes,
		URIs:       append([]string(nil), n.URIs...),
	}
}
