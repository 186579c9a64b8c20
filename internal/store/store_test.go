package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/tendant/nft-enricher/internal/nft"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestMetadataReplace(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	if _, found, err := s.GetMetadata(ctx, "COL-abcdef-01"); err != nil || found {
		t.Fatalf("expected no record, got found=%v err=%v", found, err)
	}

	first := nft.Metadata{"tags": nft.Strings([]string{"a", "b"}), "old": nft.String("x")}
	if err := s.SetMetadata(ctx, "COL-abcdef-01", first); err != nil {
		t.Fatalf("set: %v", err)
	}

	second := nft.Metadata{"tags": nft.Strings([]string{"c"})}
	if err := s.SetMetadata(ctx, "COL-abcdef-01", second); err != nil {
		t.Fatalf("replace: %v", err)
	}

	got, found, err := s.GetMetadata(ctx, "COL-abcdef-01")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if _, ok := got["old"]; ok {
		t.Fatalf("record was patched instead of replaced: %+v", got)
	}
	tags, _ := got["tags"].Items()
	if len(tags) != 1 {
		t.Fatalf("unexpected tags: %+v", tags)
	}
}

func TestMediaRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	media := []nft.Media{{
		URL:          "https://media.example.com/nfts/asset/QmA",
		OriginalURL:  "https://ipfs.io/ipfs/QmA",
		ThumbnailURL: "https://media.example.com/nfts/thumbnail/COL-abcdef-1234abcd",
		FileType:     "image/png",
		FileSize:     1024,
	}}
	if err := s.SetMedia(ctx, "COL-abcdef-01", media); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, found, err := s.GetMedia(ctx, "COL-abcdef-01")
	if err != nil || !found {
		t.Fatalf("get: found=%v err=%v", found, err)
	}
	if len(got) != 1 || got[0] != media[0] {
		t.Fatalf("unexpected media: %+v", got)
	}

	if err := s.SetMedia(ctx, "COL-abcdef-01", nil); err != nil {
		t.Fatalf("replace with empty: %v", err)
	}
	got, found, _ = s.GetMedia(ctx, "COL-abcdef-01")
	if !found || len(got) != 0 {
		t.Fatalf("expected empty stored list, got found=%v %+v", found, got)
	}
}
