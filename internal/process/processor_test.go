package process

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/tendant/nft-enricher/internal/nft"
	"github.com/tendant/nft-enricher/internal/thumbnail"
	"github.com/tendant/nft-enricher/pkg/schema"
)

type fakeMetadata struct {
	stored    nft.Metadata
	getErr    error
	refreshed int
}

func (f *fakeMetadata) Get(context.Context, *nft.Nft) (nft.Metadata, error) {
	return f.stored, f.getErr
}

func (f *fakeMetadata) Refresh(_ context.Context, n *nft.Nft) (nft.Metadata, error) {
	f.refreshed++
	if n.Attributes == "" {
		return nil, nil
	}
	f.stored = nft.Metadata{"tags": nft.Strings([]string{"a"})}
	return f.stored, nil
}

type fakeMedia struct {
	stored     []nft.Media
	next       []nft.Media
	refreshErr error
	refreshed  int
}

func (f *fakeMedia) Get(context.Context, string) ([]nft.Media, error) { return f.stored, nil }

func (f *fakeMedia) Refresh(context.Context, *nft.Nft) ([]nft.Media, error) {
	f.refreshed++
	if f.refreshErr != nil {
		return nil, f.refreshErr
	}
	f.stored = f.next
	return f.next, nil
}

type fakeThumbnails struct {
	mu        sync.Mutex
	existing  map[string]bool
	failURL   string
	generated []string
	forced    []bool
}

func (f *fakeThumbnails) Generate(_ context.Context, _ *nft.Nft, url, _ string, force bool) (thumbnail.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.generated = append(f.generated, url)
	f.forced = append(f.forced, force)
	if url == f.failURL {
		return thumbnail.ResultUnhandledException, errors.New("download failed")
	}
	if f.existing == nil {
		f.existing = map[string]bool{}
	}
	f.existing[url] = true
	return thumbnail.ResultSuccess, nil
}

func (f *fakeThumbnails) HasThumbnailGenerated(_ context.Context, _ string, url string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.existing[url], nil
}

func media(urls ...string) []nft.Media {
	var out []nft.Media
	for _, u := range urls {
		out = append(out, nft.Media{URL: u, FileType: "image/png"})
	}
	return out
}

func newTestNft() *nft.Nft {
	return &nft.Nft{
		Identifier: "COL-abcdef-01",
		Type:       nft.TypeNonFungible,
		Attributes: "dGFnczph",
		URIs:       []string{"aHR0cHM6Ly9leGFtcGxlLmNvbS9hLnBuZw=="},
	}
}

func TestProcessFirstRunThenIdle(t *testing.T) {
	md := &fakeMetadata{}
	mm := &fakeMedia{next: media("https://media.example.com/a.png")}
	th := &fakeThumbnails{}
	p := NewProcessor(md, mm, th, nil)
	ctx := context.Background()

	did, err := p.Process(ctx, newTestNft(), nft.Settings{})
	if err != nil || !did {
		t.Fatalf("first Process = %v, %v", did, err)
	}
	if md.refreshed != 1 || mm.refreshed != 1 || len(th.generated) != 1 {
		t.Fatalf("unexpected work: metadata=%d media=%d thumbs=%d", md.refreshed, mm.refreshed, len(th.generated))
	}

	did, err = p.Process(ctx, newTestNft(), nft.Settings{})
	if err != nil || did {
		t.Fatalf("second Process = %v, %v", did, err)
	}
	if md.refreshed != 1 || mm.refreshed != 1 || len(th.generated) != 1 {
		t.Fatal("second run must not do any work")
	}
}

func TestProcessForceRefreshBypassesChecks(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: media("https://media.example.com/a.png", "https://media.example.com/b.png")}
	mm.next = mm.stored
	th := &fakeThumbnails{existing: map[string]bool{
		"https://media.example.com/a.png": true,
		"https://media.example.com/b.png": true,
	}}
	p := NewProcessor(md, mm, th, nil)

	did, err := p.Process(context.Background(), newTestNft(), nft.Settings{ForceRefreshThumbnail: true})
	if err != nil || !did {
		t.Fatalf("Process = %v, %v", did, err)
	}
	if len(th.generated) != 2 {
		t.Fatalf("expected every descriptor to be regenerated, got %v", th.generated)
	}
	for _, f := range th.forced {
		if !f {
			t.Fatal("force flag not passed to the generator")
		}
	}
	if md.refreshed != 0 || mm.refreshed != 0 {
		t.Fatal("present metadata and media must not be refreshed without their force flag")
	}
}

func TestProcessFanOutFailure(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: media("https://media.example.com/ok.png", "https://media.example.com/bad.png")}
	th := &fakeThumbnails{failURL: "https://media.example.com/bad.png"}
	p := NewProcessor(md, mm, th, nil)

	report, err := p.Run(context.Background(), newTestNft(), nft.Settings{})
	if err == nil {
		t.Fatal("expected the failing branch to fail the job")
	}
	if len(th.generated) != 2 {
		t.Fatalf("the other branch must run to completion, generated %v", th.generated)
	}
	if !th.existing["https://media.example.com/ok.png"] {
		t.Fatal("successful branch result lost")
	}
	if len(report.Thumbnails) != 2 {
		t.Fatalf("report should carry both outcomes: %+v", report.Thumbnails)
	}
}

func TestProcessSkipThumbnails(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: media("https://media.example.com/a.png")}
	th := &fakeThumbnails{}
	p := NewProcessor(md, mm, th, nil)

	did, err := p.Process(context.Background(), newTestNft(), nft.Settings{SkipRefreshThumbnail: true})
	if err != nil || did {
		t.Fatalf("nothing to do when thumbnails are skipped, got %v %v", did, err)
	}

	did, err = p.Process(context.Background(), newTestNft(), nft.Settings{SkipRefreshThumbnail: true, ForceRefreshMedia: true})
	if err != nil || !did {
		t.Fatalf("Process = %v, %v", did, err)
	}
	if len(th.generated) != 0 {
		t.Fatal("thumbnails must not be generated when skipped")
	}
}

func TestProcessMetaTokenNeedsNothing(t *testing.T) {
	md := &fakeMetadata{}
	mm := &fakeMedia{}
	th := &fakeThumbnails{}
	p := NewProcessor(md, mm, th, nil)

	n := &nft.Nft{Identifier: "META-abcdef-01", Type: nft.TypeMeta, URIs: []string{"aGk="}}
	did, err := p.Process(context.Background(), n, nft.Settings{})
	if err != nil || did {
		t.Fatalf("Process = %v, %v", did, err)
	}
}

func TestProcessMediaFailurePropagates(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{refreshErr: errors.New("gateway down")}
	p := NewProcessor(md, mm, &fakeThumbnails{}, nil)

	if _, err := p.Process(context.Background(), newTestNft(), nft.Settings{}); err == nil {
		t.Fatal("expected media refresh error")
	}
}

func TestProcessReadErrorTreatedAsAbsent(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}, getErr: errors.New("cache down")}
	mm := &fakeMedia{stored: media("https://media.example.com/a.png")}
	mm.next = mm.stored
	th := &fakeThumbnails{existing: map[string]bool{"https://media.example.com/a.png": true}}
	p := NewProcessor(md, mm, th, nil)

	did, err := p.Process(context.Background(), newTestNft(), nft.Settings{})
	if err != nil || !did {
		t.Fatalf("Process = %v, %v", did, err)
	}
	if md.refreshed != 1 {
		t.Fatal("unreadable metadata should be recomputed")
	}
}

func TestProcessSkipsDefaultThumbnails(t *testing.T) {
	large := nft.Media{
		URL:          "https://media.example.com/nfts/asset/big.mp4",
		ThumbnailURL: "https://media.example.com/" + nft.DefaultThumbnailPath,
		FileType:     "video/mp4",
	}
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: []nft.Media{large}}
	th := &fakeThumbnails{}
	p := NewProcessor(md, mm, th, nil)

	if p.NeedsProcessing(context.Background(), newTestNft(), nft.Settings{}) {
		t.Fatal("a default thumbnail descriptor must not count as missing work")
	}

	mm.stored = append(mm.stored, media("https://media.example.com/a.png")...)
	report, err := p.Run(context.Background(), newTestNft(), nft.Settings{})
	if err != nil || !report.NeedsWork {
		t.Fatalf("Run = %+v, %v", report, err)
	}
	if len(th.generated) != 1 || th.generated[0] != "https://media.example.com/a.png" {
		t.Fatalf("only the regular descriptor should be generated, got %v", th.generated)
	}
	if len(report.Thumbnails) != 1 {
		t.Fatalf("unexpected outcomes %+v", report.Thumbnails)
	}
}

type fakeAssets struct {
	uploaded map[string]bool
	uploads  []string
}

func (f *fakeAssets) IsUploaded(_ context.Context, m nft.Media) bool { return f.uploaded[m.URL] }

func (f *fakeAssets) Upload(_ context.Context, _ string, m nft.Media) {
	if f.uploaded == nil {
		f.uploaded = map[string]bool{}
	}
	f.uploaded[m.URL] = true
	f.uploads = append(f.uploads, m.URL)
}

func TestProcessUploadAsset(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: media("https://media.example.com/a.png", "https://media.example.com/b.png")}
	th := &fakeThumbnails{existing: map[string]bool{
		"https://media.example.com/a.png": true,
		"https://media.example.com/b.png": true,
	}}
	assets := &fakeAssets{uploaded: map[string]bool{"https://media.example.com/a.png": true}}
	p := NewProcessor(md, mm, th, nil).WithAssetUploader(assets)
	ctx := context.Background()
	settings := nft.Settings{UploadAsset: true}

	if p.NeedsProcessing(ctx, newTestNft(), nft.Settings{}) {
		t.Fatal("missing assets only matter when the upload is requested")
	}

	did, err := p.Process(ctx, newTestNft(), settings)
	if err != nil || !did {
		t.Fatalf("Process = %v, %v", did, err)
	}
	if len(assets.uploads) != 1 || assets.uploads[0] != "https://media.example.com/b.png" {
		t.Fatalf("only the missing asset should be uploaded, got %v", assets.uploads)
	}
	if len(th.generated) != 0 {
		t.Fatalf("existing thumbnails must not be regenerated, got %v", th.generated)
	}

	did, err = p.Process(ctx, newTestNft(), settings)
	if err != nil || did {
		t.Fatalf("second Process = %v, %v", did, err)
	}
}

func TestProcessUploadAssetWithoutUploader(t *testing.T) {
	md := &fakeMetadata{stored: nft.Metadata{}}
	mm := &fakeMedia{stored: media("https://media.example.com/a.png")}
	th := &fakeThumbnails{existing: map[string]bool{"https://media.example.com/a.png": true}}
	p := NewProcessor(md, mm, th, nil)

	did, err := p.Process(context.Background(), newTestNft(), nft.Settings{UploadAsset: true})
	if err != nil || did {
		t.Fatalf("Process = %v, %v", did, err)
	}
}

type recordingPublisher struct{ jobs []schema.ProcessNft }

func (r *recordingPublisher) PublishJob(_ context.Context, job schema.ProcessNft) error {
	r.jobs = append(r.jobs, job)
	return nil
}

func TestSchedulerPublishesOnlyWhenNeeded(t *testing.T) {
	md := &fakeMetadata{}
	mm := &fakeMedia{}
	th := &fakeThumbnails{}
	pub := &recordingPublisher{}
	s := NewScheduler(NewProcessor(md, mm, th, nil), pub, nil)

	queued, err := s.Schedule(context.Background(), newTestNft(), nft.Settings{ForceRefreshMedia: true})
	if err != nil || !queued {
		t.Fatalf("Schedule = %v, %v", queued, err)
	}
	if len(pub.jobs) != 1 || pub.jobs[0].Identifier != "COL-abcdef-01" || !pub.jobs[0].Settings.ForceRefreshMedia {
		t.Fatalf("unexpected jobs %+v", pub.jobs)
	}
	if pub.jobs[0].Nft == nil || len(pub.jobs[0].Nft.URIs) != 1 {
		t.Fatal("job should embed the nft reference")
	}

	idle := &nft.Nft{Identifier: "META-abcdef-01", Type: nft.TypeMeta}
	queued, err = s.Schedule(context.Background(), idle, nft.Settings{})
	if err != nil || queued {
		t.Fatalf("Schedule for idle nft = %v, %v", queued, err)
	}
	if len(pub.jobs) != 1 {
		t.Fatal("no job should be published when nothing is needed")
	}
	if md.refreshed != 0 || mm.refreshed != 0 {
		t.Fatal("scheduling must not run the pipeline")
	}
}
