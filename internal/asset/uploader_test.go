package asset

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/tendant/nft-enricher/internal/nft"
)

const testCID = "QmYwAPJzv5CZsnA625s3Xf2nemtYgPpHdWEz79ojWnPbdG"

type fakeStorage struct {
	objects   map[string][]byte
	types     map[string]string
	existsErr error
}

func (f *fakeStorage) Upload(_ context.Context, path string, data []byte, contentType string) string {
	if f.objects == nil {
		f.objects = map[string][]byte{}
		f.types = map[string]string{}
	}
	f.objects[path] = data
	f.types[path] = contentType
	return "https://media.example.com/" + path
}

func (f *fakeStorage) Exists(_ context.Context, path string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	_, ok := f.objects[path]
	return ok, nil
}

func newGateway(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/ipfs/"+testCID+"/1.png" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = w.Write([]byte("png bytes"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestUploadMirrorsAsset(t *testing.T) {
	var hits int32
	srv := newGateway(t, &hits)
	storage := &fakeStorage{}
	u := NewUploader(Config{GatewayURL: srv.URL + "/ipfs"}, srv.Client(), storage, nil)
	m := nft.Media{OriginalURL: "ipfs://" + testCID + "/1.png", FileType: "image/png"}
	ctx := context.Background()

	if u.IsUploaded(ctx, m) {
		t.Fatal("asset should not be uploaded yet")
	}
	u.Upload(ctx, "COL-abcdef-01", m)

	path := "nfts/asset/" + testCID + "/1.png"
	if string(storage.objects[path]) != "png bytes" || storage.types[path] != "image/png" {
		t.Fatalf("asset not mirrored: %v", storage.objects)
	}
	if !u.IsUploaded(ctx, m) {
		t.Fatal("asset should be reported as uploaded")
	}
}

func TestUploadSwallowsFailures(t *testing.T) {
	tests := []struct {
		name    string
		media   nft.Media
		maxSize int64
	}{
		{"missing on gateway", nft.Media{OriginalURL: "ipfs://" + testCID + "/gone.png"}, 0},
		{"over the size limit", nft.Media{OriginalURL: "ipfs://" + testCID + "/1.png"}, 4},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			srv := newGateway(t, &hits)
			storage := &fakeStorage{}
			u := NewUploader(Config{GatewayURL: srv.URL + "/ipfs", MaxFileSize: tt.maxSize}, srv.Client(), storage, nil)

			u.Upload(context.Background(), "COL-abcdef-01", tt.media)
			if atomic.LoadInt32(&hits) != 1 || len(storage.objects) != 0 {
				t.Fatalf("expected one failed download and no upload, hits=%d objects=%v", hits, storage.objects)
			}
		})
	}
}

func TestNonIPFSAssetsAreNotMirrored(t *testing.T) {
	var hits int32
	srv := newGateway(t, &hits)
	storage := &fakeStorage{existsErr: errors.New("must not be called")}
	u := NewUploader(Config{GatewayURL: srv.URL + "/ipfs"}, srv.Client(), storage, nil)
	m := nft.Media{OriginalURL: "https://example.com/art.png"}

	if !u.IsUploaded(context.Background(), m) {
		t.Fatal("non ipfs asset should never be reported as missing")
	}
	u.Upload(context.Background(), "COL-abcdef-01", m)
	if atomic.LoadInt32(&hits) != 0 || len(storage.objects) != 0 {
		t.Fatal("non ipfs asset must not be downloaded")
	}
}

func TestIsUploadedTreatsErrorsAsMissing(t *testing.T) {
	storage := &fakeStorage{existsErr: errors.New("media host unavailable")}
	u := NewUploader(Config{}, nil, storage, nil)

	if u.IsUploaded(context.Background(), nft.Media{OriginalURL: "ipfs://" + testCID}) {
		t.Fatal("lookup error must count as not uploaded")
	}
}
