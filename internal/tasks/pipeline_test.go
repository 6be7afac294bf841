package tasks

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/desertthunder/spotdown/internal/delivery"
	"github.com/desertthunder/spotdown/internal/media"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/transcode"
)

type fakeResolver struct {
	tracks map[string]*models.TrackRef
	err    error
}

func (f *fakeResolver) Resolve(ctx context.Context, trackID string) (*models.TrackRef, error) {
	if f.err != nil {
		return nil, f.err
	}
	if ref, ok := f.tracks[trackID]; ok {
		copied := *ref
		return &copied, nil
	}
	return nil, fmt.Errorf("%w: track %s", shared.ErrTrackNotFound, trackID)
}

type fakeLocator struct {
	candidate *models.SourceCandidate
	err       error
	queries   atomic.Int32
}

func (f *fakeLocator) Search(ctx context.Context, title, artist string) (*models.SourceCandidate, error) {
	f.queries.Add(1)
	return f.candidate, f.err
}

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	panic bool
}

func (f *fakeFetcher) Fetch(ctx context.Context, address string, dest func(ext string) string) (*media.Fetched, error) {
	f.calls.Add(1)
	path := dest("webm")
	if err := os.WriteFile(path, []byte("webm-audio"), 0644); err != nil {
		return nil, err
	}
	if f.panic {
		panic("stream exploded")
	}
	if f.err != nil {
		return nil, f.err
	}
	return &media.Fetched{Path: path, Size: 10, MimeType: "audio/webm"}, nil
}

type fakeTranscoder struct {
	calls     atomic.Int32
	err       error
	resultURL string
}

func (f *fakeTranscoder) Name() string { return "fake" }

func (f *fakeTranscoder) Transcode(ctx context.Context, inputPath string) (*transcode.Output, error) {
	f.calls.Add(1)
	out := transcode.OutputPath(inputPath)
	if err := os.WriteFile(out, []byte("mp3-frames"), 0644); err != nil {
		return nil, err
	}
	if f.err != nil {
		return nil, f.err
	}
	if f.resultURL != "" {
		return &transcode.Output{URL: f.resultURL}, nil
	}
	return &transcode.Output{Path: out}, nil
}

type pipelineFixture struct {
	dir        string
	resolver   *fakeResolver
	locator    *fakeLocator
	fetcher    *fakeFetcher
	transcoder *fakeTranscoder
}

func newFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	return &pipelineFixture{
		dir: t.TempDir(),
		resolver: &fakeResolver{tracks: map[string]*models.TrackRef{
			"abc123": {ID: "abc123", Title: "Starlight", Artist: "Muse", Album: "Black Holes and Revelations"},
		}},
		locator: &fakeLocator{candidate: &models.SourceCandidate{
			Address: "https://www.youtube.com/watch?v=Pgum6OT_VH8",
			Title:   "Muse - Starlight",
		}},
		fetcher:    &fakeFetcher{},
		transcoder: &fakeTranscoder{},
	}
}

func (f *pipelineFixture) pipeline() *Pipeline {
	return NewPipeline(PipelineOpts{
		Resolver:   f.resolver,
		Locator:    f.locator,
		Fetcher:    f.fetcher,
		Transcoder: f.transcoder,
		Packager:   delivery.NewPackager(nil, nil),
		TempDir:    f.dir,
	})
}

func (f *pipelineFixture) assertNoArtifacts(t *testing.T) {
	t.Helper()
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		t.Fatalf("failed to read temp dir: %v", err)
	}
	if len(entries) != 0 {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("expected no artifacts, found %v", names)
	}
}

func assertKind(t *testing.T, err error, want ErrorKind) *PipelineError {
	t.Helper()
	var pe *PipelineError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *PipelineError, got %T (%v)", err, err)
	}
	if pe.Kind != want {
		t.Errorf("expected kind %s, got %s (%v)", want, pe.Kind, pe.Err)
	}
	return pe
}

func TestPipelineRun(t *testing.T) {
	t.Run("delivers a tagged mp3 named after the track", func(t *testing.T) {
		f := newFixture(t)
		progress := make(chan ProgressUpdate, 16)

		file, err := f.pipeline().Run(context.Background(), "abc123", progress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if file.FileName != "Muse - Starlight.mp3" {
			t.Errorf("expected Muse - Starlight.mp3, got %s", file.FileName)
		}
		if file.ContentType != delivery.ContentTypeMP3 {
			t.Errorf("unexpected content type %s", file.ContentType)
		}
		if !bytes.HasPrefix(file.Data, []byte("ID3")) || !bytes.HasSuffix(file.Data, []byte("mp3-frames")) {
			t.Errorf("unexpected payload %q", file.Data)
		}
		f.assertNoArtifacts(t)

		close(progress)
		var phases []Phase
		for u := range progress {
			phases = append(phases, u.Phase)
		}
		want := []Phase{ResolvingMetadata, LocatingSource, Fetching, Transcoding, Packaging, Done}
		if fmt.Sprint(phases) != fmt.Sprint(want) {
			t.Errorf("expected phases %v, got %v", want, phases)
		}
	})

	t.Run("nil progress channel", func(t *testing.T) {
		f := newFixture(t)
		if _, err := f.pipeline().Run(context.Background(), "abc123", nil); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("full progress channel never blocks", func(t *testing.T) {
		f := newFixture(t)
		progress := make(chan ProgressUpdate)
		if _, err := f.pipeline().Run(context.Background(), "abc123", progress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("unknown track", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.pipeline().Run(context.Background(), "missing", nil)

		pe := assertKind(t, err, KindInvalidReference)
		if !errors.Is(pe, shared.ErrTrackNotFound) {
			t.Errorf("expected ErrTrackNotFound in chain")
		}
		if f.locator.queries.Load() != 0 {
			t.Error("expected no search")
		}
		f.assertNoArtifacts(t)
	})

	t.Run("malformed id", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.err = fmt.Errorf("%w: malformed track id", shared.ErrInvalidReference)
		_, err := f.pipeline().Run(context.Background(), "../etc", nil)
		assertKind(t, err, KindInvalidReference)
	})

	t.Run("catalog unavailable", func(t *testing.T) {
		f := newFixture(t)
		f.resolver.err = fmt.Errorf("%w: token endpoint down", shared.ErrAuthFailed)
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		pe := assertKind(t, err, KindMetadataUnavailable)
		if pe.Message != "could not load track details, try again later" {
			t.Errorf("unexpected message %q", pe.Message)
		}
	})

	t.Run("search failure", func(t *testing.T) {
		f := newFixture(t)
		f.locator.err = fmt.Errorf("%w: status 503", shared.ErrAPIRequest)
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		assertKind(t, err, KindUpstream)
		if f.fetcher.calls.Load() != 0 {
			t.Error("expected fetcher not to be called")
		}
		f.assertNoArtifacts(t)
	})

	t.Run("zero search results", func(t *testing.T) {
		f := newFixture(t)
		f.locator.candidate = nil
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		pe := assertKind(t, err, KindNoMatchingSource)
		if pe.Message != "no source found for this track" {
			t.Errorf("unexpected message %q", pe.Message)
		}
		if f.fetcher.calls.Load() != 0 || f.transcoder.calls.Load() != 0 {
			t.Error("expected fetcher and transcoder never to be called")
		}
		f.assertNoArtifacts(t)
	})

	t.Run("fetch failure leaves no partial file", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.err = fmt.Errorf("%w: stream reset", shared.ErrFetch)
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		assertKind(t, err, KindFetchFailed)
		if f.transcoder.calls.Load() != 0 {
			t.Error("expected transcoder not to be called")
		}
		f.assertNoArtifacts(t)
	})

	t.Run("transcode failure", func(t *testing.T) {
		f := newFixture(t)
		f.transcoder.err = &transcode.TranscodeError{Strategy: "local", ExitCode: 1}
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		pe := assertKind(t, err, KindTranscodeFailed)
		if pe.Message != "conversion failed" {
			t.Errorf("unexpected message %q", pe.Message)
		}
		if !errors.Is(err, shared.ErrTranscode) {
			t.Error("expected ErrTranscode in chain")
		}
		f.assertNoArtifacts(t)
	})

	t.Run("transcode timeout", func(t *testing.T) {
		f := newFixture(t)
		f.transcoder.err = &transcode.TranscodeError{Strategy: "remote", Timeout: true}
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		pe := assertKind(t, err, KindTranscodeFailed)
		if pe.Message != "conversion timed out" {
			t.Errorf("unexpected message %q", pe.Message)
		}
	})

	t.Run("remote result gone while packaging", func(t *testing.T) {
		results := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer results.Close()

		f := newFixture(t)
		f.transcoder.resultURL = results.URL + "/files/out.mp3"
		progress := make(chan ProgressUpdate, 16)
		_, err := f.pipeline().Run(context.Background(), "abc123", progress)

		assertKind(t, err, KindInternal)
		if !errors.Is(err, shared.ErrPackage) {
			t.Errorf("expected ErrPackage in chain, got %v", err)
		}
		f.assertNoArtifacts(t)

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		if last.Phase != Failed {
			t.Errorf("expected final phase %s, got %s", Failed, last.Phase)
		}
	})

	t.Run("truncated remote result leaves no partial copy", func(t *testing.T) {
		results := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Length", "1024")
			w.Write([]byte("mp3-fr"))
		}))
		defer results.Close()

		f := newFixture(t)
		f.transcoder.resultURL = results.URL + "/files/out.mp3"
		_, err := f.pipeline().Run(context.Background(), "abc123", nil)

		assertKind(t, err, KindInternal)
		f.assertNoArtifacts(t)
	})

	t.Run("panic becomes an internal error", func(t *testing.T) {
		f := newFixture(t)
		f.fetcher.panic = true
		progress := make(chan ProgressUpdate, 16)

		file, err := f.pipeline().Run(context.Background(), "abc123", progress)
		if file != nil {
			t.Error("expected no file")
		}
		assertKind(t, err, KindInternal)
		f.assertNoArtifacts(t)

		close(progress)
		var last ProgressUpdate
		for u := range progress {
			last = u
		}
		if last.Phase != Failed {
			t.Errorf("expected last phase failed, got %s", last.Phase)
		}
	})

	t.Run("unconfigured stages", func(t *testing.T) {
		_, err := NewPipeline(PipelineOpts{TempDir: t.TempDir()}).Run(context.Background(), "abc123", nil)
		assertKind(t, err, KindInternal)
	})

	t.Run("concurrent runs of one track", func(t *testing.T) {
		f := newFixture(t)
		p := f.pipeline()

		var wg sync.WaitGroup
		errs := make(chan error, 5)
		for range 5 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				file, err := p.Run(context.Background(), "abc123", nil)
				if err == nil && file.FileName != "Muse - Starlight.mp3" {
					err = fmt.Errorf("unexpected file %s", file.FileName)
				}
				errs <- err
			}()
		}
		wg.Wait()
		close(errs)

		for err := range errs {
			if err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		}
		if f.fetcher.calls.Load() != 5 {
			t.Errorf("expected 5 fetches, got %d", f.fetcher.calls.Load())
		}
		f.assertNoArtifacts(t)
	})
}

func TestKindOf(t *testing.T) {
	if got := KindOf(noSourceError("x")); got != KindNoMatchingSource {
		t.Errorf("expected NoMatchingSource, got %s", got)
	}
	if got := KindOf(fmt.Errorf("wrapped: %w", fetchError(errors.New("x")))); got != KindFetchFailed {
		t.Errorf("expected FetchFailed, got %s", got)
	}
	if got := KindOf(errors.New("plain")); got != KindInternal {
		t.Errorf("expected InternalError, got %s", got)
	}
}

func TestPhase(t *testing.T) {
	tc := []struct {
		phase    Phase
		name     string
		terminal bool
	}{
		{ResolvingMetadata, "resolving_metadata", false},
		{LocatingSource, "locating_source", false},
		{Fetching, "fetching", false},
		{Transcoding, "transcoding", false},
		{Packaging, "packaging", false},
		{Done, "done", true},
		{Failed, "failed", true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if tt.phase.String() != tt.name {
				t.Errorf("String() = %s, want %s", tt.phase.String(), tt.name)
			}
			if tt.phase.Terminal() != tt.terminal {
				t.Errorf("Terminal() = %v, want %v", tt.phase.Terminal(), tt.terminal)
			}
		})
	}
}
