package process

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tendant/nft-enricher/internal/cache"
	"github.com/tendant/nft-enricher/internal/img"
	mediapkg "github.com/tendant/nft-enricher/internal/media"
	"github.com/tendant/nft-enricher/internal/metadata"
	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/internal/storage"
	"github.com/tendant/nft-enricher/internal/store"
	"github.com/tendant/nft-enricher/internal/thumbnail"
)

const e2eCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

// bucket is an in-memory S3 stand-in whose objects are also served by the
// fake media host.
type bucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	puts    int
}

func (b *bucket) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, _ := io.ReadAll(in.Body)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.puts++
	b.objects[*in.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *bucket) has(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok
}

// countingStore counts writes to the real store.
type countingStore struct {
	*store.Store
	mu     sync.Mutex
	writes int
}

func (c *countingStore) SetMetadata(ctx context.Context, id string, md nft.Metadata) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Store.SetMetadata(ctx, id, md)
}

func (c *countingStore) SetMedia(ctx context.Context, id string, m []nft.Media) error {
	c.mu.Lock()
	c.writes++
	c.mu.Unlock()
	return c.Store.SetMedia(ctx, id, m)
}

func testPNG(t *testing.T) []byte {
	t.Helper()
	m := image.NewRGBA(image.Rect(0, 0, 300, 150))
	for x := 0; x < 300; x++ {
		for y := 0; y < 150; y++ {
			m.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, m); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestEndToEndProcessIsIdempotent(t *testing.T) {
	ctx := context.Background()
	art := testPNG(t)
	objects := &bucket{objects: map[string][]byte{}}

	var (
		mu       sync.Mutex
		probes   int
		fetches  int
		existsOK int
	)
	srv := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		switch {
		case r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/ipfs/"):
			probes++
			w.Header().Set("Content-Type", "image/png")
			w.Header().Set("Content-Length", strconv.Itoa(len(art)))
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/nfts/asset/"):
			fetches++
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write(art)
		case r.Method == http.MethodHead && strings.HasPrefix(r.URL.Path, "/nfts/thumbnail/"):
			if objects.has(strings.TrimPrefix(r.URL.Path, "/")) {
				existsOK++
				w.WriteHeader(http.StatusOK)
				return
			}
			w.WriteHeader(http.StatusNotFound)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	db, err := store.Open(filepath.Join(t.TempDir(), "nft.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	defer db.Close()
	st := &countingStore{Store: db}
	c := cache.NewMemory(time.Minute)

	metadataResolver := metadata.NewResolver(st, c, nil, nil)
	mediaResolver := mediapkg.NewResolver(mediapkg.Config{
		ExternalMediaURL: srv.URL,
		GatewayURL:       srv.URL + "/ipfs",
	}, st, c, mediapkg.NewProber(srv.Client(), c, nil), nil, nil)
	storageClient := storage.NewWithPutter(objects, storage.Config{Bucket: "media", MediaURL: srv.URL}, srv.Client(), nil)
	tempDir := t.TempDir()
	generator := thumbnail.NewGenerator(thumbnail.Config{TempDir: tempDir}, srv.Client(), storageClient,
		img.NewExtractors(600, 600, nil, nil), nil)
	p := NewProcessor(metadataResolver, mediaResolver, generator, nil)

	newNft := func() *nft.Nft {
		return &nft.Nft{
			Identifier: "COL-abcdef-01",
			Type:       nft.TypeNonFungible,
			Attributes: base64.StdEncoding.EncodeToString([]byte("tags:art,pixel;metadata:" + e2eCID)),
			URIs:       []string{base64.StdEncoding.EncodeToString([]byte("https://ipfs.io/ipfs/" + e2eCID + "/1.png"))},
		}
	}

	first := newNft()
	did, err := p.Process(ctx, first, nft.Settings{})
	if err != nil || !did {
		t.Fatalf("first Process = %v, %v", did, err)
	}
	if st.writes != 2 {
		t.Fatalf("expected metadata and media writes, got %d", st.writes)
	}
	if probes != 1 || fetches != 1 || objects.puts != 1 {
		t.Fatalf("expected one probe, one download and one upload; got %d %d %d", probes, fetches, objects.puts)
	}

	mediaURL := srv.URL + "/nfts/asset/" + e2eCID + "/1.png"
	if len(first.Media) != 1 || first.Media[0].URL != mediaURL {
		t.Fatalf("unexpected media %+v", first.Media)
	}
	thumbPath := nft.ThumbnailPath(first.Identifier, mediaURL)
	if first.Media[0].ThumbnailURL != srv.URL+"/"+thumbPath {
		t.Fatalf("thumbnail url %s does not match uploaded path %s", first.Media[0].ThumbnailURL, thumbPath)
	}
	out, err := png.Decode(bytes.NewReader(objects.objects[thumbPath]))
	if err != nil {
		t.Fatalf("uploaded thumbnail is not png: %v", err)
	}
	if b := out.Bounds(); b.Dx() != 600 || b.Dy() != 600 {
		t.Fatalf("thumbnail not cover fitted: %dx%d", b.Dx(), b.Dy())
	}

	second := newNft()
	did, err = p.Process(ctx, second, nft.Settings{})
	if err != nil || did {
		t.Fatalf("second Process = %v, %v", did, err)
	}
	if st.writes != 2 || objects.puts != 1 || probes != 1 || fetches != 1 {
		t.Fatalf("second run must not write or fetch: writes=%d puts=%d probes=%d fetches=%d",
			st.writes, objects.puts, probes, fetches)
	}
	if existsOK != 1 {
		t.Fatalf("second run should confirm the thumbnail exists, got %d checks", existsOK)
	}
	if tags, ok := second.Metadata["tags"].Items(); !ok || len(tags) != 2 {
		t.Fatalf("stored metadata not attached: %+v", second.Metadata)
	}
}
