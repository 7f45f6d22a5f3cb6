package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/famomatic/ytfetch/internal/cache"
	"github.com/famomatic/ytfetch/internal/types"
)

type stubProvider struct {
	mu        sync.Mutex
	meta      map[string]*types.VideoMetadata
	err       error
	calls     int32
	delay     time.Duration
	streamErr error
	// started and release, when set, hold Video open until release closes.
	started   chan struct{}
	release   chan struct{}
	startOnce sync.Once
}

func (p *stubProvider) Video(ctx context.Context, videoID string) (*types.VideoMetadata, error) {
	atomic.AddInt32(&p.calls, 1)
	if p.delay > 0 {
		time.Sleep(p.delay)
	}
	if p.release != nil {
		p.startOnce.Do(func() { close(p.started) })
		select {
		case <-p.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if p.err != nil {
		return nil, p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	m, ok := p.meta[videoID]
	if !ok {
		return nil, types.ErrVideoUnavailable
	}
	return m, nil
}

func (p *stubProvider) StreamURL(_ context.Context, videoID string, itag int) (string, error) {
	if p.streamErr != nil {
		return "", p.streamErr
	}
	return "https://rr1.googlevideo.com/videoplayback?id=" + videoID + "&itag=" + strconv.Itoa(itag), nil
}

func (p *stubProvider) Stream(_ context.Context, videoID string, itag int) (io.ReadCloser, int64, error) {
	if p.streamErr != nil {
		return nil, 0, p.streamErr
	}
	return io.NopCloser(strings.NewReader("media")), 0, nil
}

func sampleMetadata() *types.VideoMetadata {
	return &types.VideoMetadata{
		ID:     "Mh1hKt5kQ_4",
		Title:  "Sample: Video",
		Author: "Channel",
		Formats: []types.FormatInfo{
			{Itag: 137, MimeType: `video/mp4; codecs="avc1.640028"`, HasVideo: true, Width: 1920, Height: 1080, QualityLabel: "1080p"},
			{Itag: 18, MimeType: `video/mp4; codecs="avc1.42001E, mp4a.40.2"`, HasVideo: true, HasAudio: true, Width: 640, Height: 360, FPS: 30, QualityLabel: "360p", ContentLength: "1536"},
			{Itag: 140, MimeType: `audio/mp4; codecs="mp4a.40.2"`, HasAudio: true, Bitrate: 130000},
			{Itag: 251, MimeType: `audio/webm; codecs="opus"`, HasAudio: true, Bitrate: 160000},
		},
	}
}

func newStubClient(p *stubProvider, store cache.Store) *Client {
	return New(Config{Provider: p, Cache: store})
}

func TestGetVideoCachesResult(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}}
	c := newStubClient(p, cache.NewMemory(8))
	ctx := context.Background()

	first, err := c.GetVideo(ctx, "https://www.youtube.com/watch?v=Mh1hKt5kQ_4")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	second, err := c.GetVideo(ctx, "https://youtu.be/Mh1hKt5kQ_4")
	if err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if p.calls != 1 {
		t.Fatalf("provider calls=%d, want 1", p.calls)
	}
	if first.Title != second.Title || len(second.Formats) != 4 {
		t.Fatalf("cached video differs: %+v vs %+v", first, second)
	}

	second.Formats[0].Itag = 999
	third, _ := c.GetVideo(ctx, "Mh1hKt5kQ_4")
	if third.Formats[0].Itag != 137 {
		t.Fatalf("cached formats mutated through returned value")
	}
}

func TestGetVideoCoalescesConcurrentLookups(t *testing.T) {
	p := &stubProvider{
		meta:  map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()},
		delay: 50 * time.Millisecond,
	}
	c := newStubClient(p, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.GetVideo(context.Background(), "Mh1hKt5kQ_4"); err != nil {
				t.Errorf("GetVideo() error = %v", err)
			}
		}()
	}
	wg.Wait()
	if got := atomic.LoadInt32(&p.calls); got >= 8 {
		t.Fatalf("provider calls=%d, expected concurrent lookups to be shared", got)
	}
}

func TestGetVideoSharedLookupSurvivesCallerCancel(t *testing.T) {
	p := &stubProvider{
		meta:    map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()},
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	c := newStubClient(p, nil)

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := c.GetVideo(ctxA, "Mh1hKt5kQ_4")
		errA <- err
	}()
	<-p.started

	type result struct {
		info *VideoInfo
		err  error
	}
	resB := make(chan result, 1)
	go func() {
		info, err := c.GetVideo(context.Background(), "https://youtu.be/Mh1hKt5kQ_4")
		resB <- result{info, err}
	}()
	time.Sleep(20 * time.Millisecond)

	cancelA()
	if err := <-errA; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller error = %v, want context.Canceled", err)
	}

	close(p.release)
	got := <-resB
	if got.err != nil {
		t.Fatalf("live caller error = %v", got.err)
	}
	if got.info.Title != "Sample: Video" {
		t.Fatalf("live caller info = %+v", got.info)
	}
}

func TestGetVideoErrors(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{}}
	c := newStubClient(p, nil)
	ctx := context.Background()

	if _, err := c.GetVideo(ctx, "https://example.com/"); !errors.Is(err, ErrInvalidReference) {
		t.Fatalf("expected ErrInvalidReference, got %v", err)
	}
	if p.calls != 0 {
		t.Fatalf("provider called for invalid input")
	}

	_, err := c.GetVideo(ctx, "jNQXAC9IVRw")
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.VideoID != "jNQXAC9IVRw" || perr.Op != "video" {
		t.Fatalf("expected ProviderError, got %#v", err)
	}
}

func TestOpenStreamWithoutFormats(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"jNQXAC9IVRw": {ID: "jNQXAC9IVRw"}}}
	c := newStubClient(p, nil)
	if _, err := c.OpenStream(context.Background(), "jNQXAC9IVRw", DownloadOptions{}); !errors.Is(err, ErrNoPlayableFormats) {
		t.Fatalf("expected ErrNoPlayableFormats, got %v", err)
	}
}

func TestInspect(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}}
	c := newStubClient(p, nil)

	report, err := c.Inspect(context.Background(), "https://www.youtube.com/watch?v=Mh1hKt5kQ_4", 0)
	if err != nil {
		t.Fatalf("Inspect() error = %v", err)
	}
	if report.Selection.Best == nil || report.Selection.Best.Itag != 18 {
		t.Fatalf("best=%+v, want itag 18", report.Selection.Best)
	}
	if report.Selection.TotalCombinedCount != 1 || len(report.Rows) != 1 {
		t.Fatalf("total=%d rows=%d", report.Selection.TotalCombinedCount, len(report.Rows))
	}
	want := FormatRow{Itag: 18, Quality: "360p", Container: "mp4", Size: "1.5 KB", Resolution: "640x360", FPS: 30}
	if report.Rows[0] != want {
		t.Fatalf("row=%+v, want %+v", report.Rows[0], want)
	}

	if _, err := c.Inspect(context.Background(), "Mh1hKt5kQ_4", -1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestResolveStreamURL(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}}
	c := newStubClient(p, nil)
	ctx := context.Background()

	f, u, err := c.ResolveStreamURL(ctx, "Mh1hKt5kQ_4", DownloadOptions{Mode: SelectionModeAudioOnly})
	if err != nil {
		t.Fatalf("ResolveStreamURL() error = %v", err)
	}
	if f.Itag != 251 || !strings.Contains(u, "itag=251") {
		t.Fatalf("format=%d url=%s", f.Itag, u)
	}

	if _, _, err := c.ResolveStreamURL(ctx, "Mh1hKt5kQ_4", DownloadOptions{Itag: 22}); !errors.Is(err, ErrFormatNotFound) {
		t.Fatalf("expected ErrFormatNotFound, got %v", err)
	}

	p.streamErr = errors.New("decipher failed")
	_, _, err = c.ResolveStreamURL(ctx, "Mh1hKt5kQ_4", DownloadOptions{})
	var perr *ProviderError
	if !errors.As(err, &perr) || perr.Op != "stream_url" {
		t.Fatalf("expected stream_url ProviderError, got %v", err)
	}
}

func TestOpenStream(t *testing.T) {
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}}
	c := newStubClient(p, nil)

	dl, err := c.OpenStream(context.Background(), "https://youtu.be/Mh1hKt5kQ_4", DownloadOptions{})
	if err != nil {
		t.Fatalf("OpenStream() error = %v", err)
	}
	defer dl.Body.Close()
	body, _ := io.ReadAll(dl.Body)
	if string(body) != "media" {
		t.Fatalf("body=%q", body)
	}
	if dl.Format.Itag != 18 || dl.Size != 1536 {
		t.Fatalf("format=%d size=%d", dl.Format.Itag, dl.Size)
	}
	if dl.Filename != "Sample Video.mp4" || dl.ContentType != "video/mp4" {
		t.Fatalf("filename=%q contentType=%q", dl.Filename, dl.ContentType)
	}
}

func TestCorruptCacheEntryIsRefetched(t *testing.T) {
	store := cache.NewMemory(8)
	_ = store.Set(context.Background(), cacheKey("Mh1hKt5kQ_4"), []byte("{not json"), time.Minute)
	var warnings []string
	p := &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}}
	c := New(Config{
		Provider: p,
		Cache:    store,
		Logger: LoggerFunc(func(format string, args ...any) {
			warnings = append(warnings, format)
		}),
	})

	if _, err := c.GetVideo(context.Background(), "Mh1hKt5kQ_4"); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if p.calls != 1 || len(warnings) == 0 {
		t.Fatalf("calls=%d warnings=%v", p.calls, warnings)
	}
}

func TestWarningsCarryRequestID(t *testing.T) {
	store := cache.NewMemory(8)
	_ = store.Set(context.Background(), cacheKey("Mh1hKt5kQ_4"), []byte("{not json"), time.Minute)
	var warnings []string
	c := New(Config{
		Provider: &stubProvider{meta: map[string]*types.VideoMetadata{"Mh1hKt5kQ_4": sampleMetadata()}},
		Cache:    store,
		Logger: LoggerFunc(func(format string, args ...any) {
			warnings = append(warnings, fmt.Sprintf(format, args...))
		}),
	})

	ctx := types.WithRequestID(context.Background(), "req-42")
	if _, err := c.GetVideo(ctx, "Mh1hKt5kQ_4"); err != nil {
		t.Fatalf("GetVideo() error = %v", err)
	}
	if len(warnings) == 0 || !strings.HasPrefix(warnings[0], "request_id=req-42 cache entry corrupt") {
		t.Fatalf("warnings=%q", warnings)
	}
}
