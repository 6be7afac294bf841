package delivery

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/desertthunder/spotdown/internal/models"
	"github.com/desertthunder/spotdown/internal/shared"
	"github.com/desertthunder/spotdown/internal/transcode"
)

func starlight() *models.TrackRef {
	return &models.TrackRef{ID: "abc123", Title: "Starlight", Artist: "Muse", Album: "Black Holes and Revelations"}
}

func TestFileName(t *testing.T) {
	tc := []struct {
		name string
		ref  *models.TrackRef
		want string
	}{
		{name: "artist then title", ref: starlight(), want: "Muse - Starlight.mp3"},
		{name: "path separators", ref: &models.TrackRef{Artist: "AC/DC", Title: "Back In Black"}, want: "AC_DC - Back In Black.mp3"},
		{name: "reserved characters", ref: &models.TrackRef{Artist: "Tool", Title: `What? "Now" <Live>`}, want: "Tool - What_ 'Now' _Live_.mp3"},
		{name: "control characters", ref: &models.TrackRef{Artist: "A\tB", Title: "C\n"}, want: "AB - C.mp3"},
		{name: "empty falls back to id", ref: &models.TrackRef{ID: "xyz"}, want: "xyz.mp3"},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			if got := FileName(tt.ref); got != tt.want {
				t.Errorf("FileName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPayload(t *testing.T) {
	data := []byte{0x49, 0x44, 0x33, 0x00, 0xff}

	encoded := EncodePayload(data)
	if !strings.HasPrefix(encoded, "data:audio/mpeg;base64,") {
		t.Fatalf("unexpected prefix in %s", encoded)
	}

	decoded, err := DecodePayload(encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(decoded, data) {
		t.Errorf("expected %v, got %v", data, decoded)
	}

	t.Run("invalid", func(t *testing.T) {
		for _, in := range []string{"audio/mpeg;base64,AAAA", "data:audio/mpeg,raw", "data:audio/mpeg;base64,@@@"} {
			if _, err := DecodePayload(in); !errors.Is(err, shared.ErrInvalidInput) {
				t.Errorf("DecodePayload(%q) expected ErrInvalidInput, got %v", in, err)
			}
		}
	})
}

func TestWorkspace(t *testing.T) {
	dir := t.TempDir()

	t.Run("paths share the run prefix", func(t *testing.T) {
		ws, err := NewWorkspace(dir, "abc123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		webm, mp3 := ws.Path("webm"), ws.Path(".mp3")
		prefix := filepath.Join(dir, "abc123-"+ws.RunID())
		if webm != prefix+".webm" || mp3 != prefix+".mp3" {
			t.Errorf("unexpected paths %s, %s", webm, mp3)
		}
	})

	t.Run("runs for the same track never collide", func(t *testing.T) {
		a, _ := NewWorkspace(dir, "abc123")
		b, _ := NewWorkspace(dir, "abc123")
		if a.Path("mp3") == b.Path("mp3") {
			t.Error("expected distinct artifact paths")
		}
	})

	t.Run("purge removes only the run's files", func(t *testing.T) {
		ws, _ := NewWorkspace(dir, "abc123")
		other, _ := NewWorkspace(dir, "abc123")

		for _, p := range []string{ws.Path("webm"), ws.Path("mp3"), other.Path("webm")} {
			if err := os.WriteFile(p, []byte("x"), 0644); err != nil {
				t.Fatalf("failed to write %s: %v", p, err)
			}
		}

		if err := ws.Purge(); err != nil {
			t.Fatalf("unexpected purge error: %v", err)
		}

		left, _ := ws.Artifacts()
		if len(left) != 0 {
			t.Errorf("expected no artifacts, got %v", left)
		}
		if _, err := os.Stat(other.Path("webm")); err != nil {
			t.Errorf("expected other run's artifact to survive: %v", err)
		}
	})

	t.Run("purge with nothing to remove", func(t *testing.T) {
		ws, _ := NewWorkspace(dir, "empty")
		if err := ws.Purge(); err != nil {
			t.Errorf("expected no error, got %v", err)
		}
	})
}

func TestPackager(t *testing.T) {
	ctx := context.Background()

	t.Run("local output", func(t *testing.T) {
		ws, _ := NewWorkspace(t.TempDir(), "abc123")
		path := ws.Path("mp3")
		if err := os.WriteFile(path, []byte("mp3-frames"), 0644); err != nil {
			t.Fatalf("failed to write artifact: %v", err)
		}

		file, err := NewPackager(nil, nil).Package(ctx, ws, starlight(), &transcode.Output{Path: path})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if file.FileName != "Muse - Starlight.mp3" {
			t.Errorf("unexpected file name %s", file.FileName)
		}
		if file.ContentType != ContentTypeMP3 {
			t.Errorf("unexpected content type %s", file.ContentType)
		}
		if !bytes.HasPrefix(file.Data, []byte("ID3")) {
			t.Error("expected an ID3 header")
		}
		if !bytes.HasSuffix(file.Data, []byte("mp3-frames")) {
			t.Error("expected audio frames after the tag")
		}

		tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to reopen tags: %v", err)
		}
		defer tag.Close()
		if tag.Title() != "Starlight" || tag.Artist() != "Muse" || tag.Album() != "Black Holes and Revelations" {
			t.Errorf("unexpected tags %q / %q / %q", tag.Title(), tag.Artist(), tag.Album())
		}
	})

	t.Run("remote output is retrieved into the workspace", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/files/out.mp3":
				w.Write([]byte("remote-frames"))
			case "/cover.jpg":
				w.Header().Set("Content-Type", "image/jpeg")
				w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		defer server.Close()

		ref := starlight()
		ref.ImageURL = server.URL + "/cover.jpg"
		ws, _ := NewWorkspace(t.TempDir(), "abc123")

		file, err := NewPackager(server.Client(), nil).Package(ctx, ws, ref, &transcode.Output{URL: server.URL + "/files/out.mp3"})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !bytes.HasSuffix(file.Data, []byte("remote-frames")) {
			t.Error("expected retrieved bytes")
		}

		artifacts, _ := ws.Artifacts()
		if len(artifacts) != 1 || artifacts[0] != ws.Path("mp3") {
			t.Errorf("expected retrieved artifact in workspace, got %v", artifacts)
		}

		tag, err := id3v2.Open(ws.Path("mp3"), id3v2.Options{Parse: true})
		if err != nil {
			t.Fatalf("failed to reopen tags: %v", err)
		}
		defer tag.Close()
		if pics := tag.GetFrames(tag.CommonID("Attached picture")); len(pics) != 1 {
			t.Errorf("expected embedded cover, got %d frames", len(pics))
		}
	})

	t.Run("remote retrieval failure", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusGone)
		}))
		defer server.Close()

		ws, _ := NewWorkspace(t.TempDir(), "abc123")
		_, err := NewPackager(server.Client(), nil).Package(ctx, ws, starlight(), &transcode.Output{URL: server.URL + "/x"})
		if !errors.Is(err, shared.ErrPackage) {
			t.Errorf("expected ErrPackage, got %v", err)
		}
	})

	t.Run("missing local output", func(t *testing.T) {
		ws, _ := NewWorkspace(t.TempDir(), "abc123")
		_, err := NewPackager(nil, nil).Package(ctx, ws, starlight(), &transcode.Output{Path: ws.Path("mp3")})
		if !errors.Is(err, shared.ErrPackage) {
			t.Errorf("expected ErrPackage, got %v", err)
		}
	})
}

func TestDirSaver(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "downloads")
	path, err := DirSaver{Dir: dir}.Save(context.Background(), &models.DeliveredFile{FileName: "Muse - Starlight.mp3", Data: []byte("mp3")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if path != filepath.Join(dir, "Muse - Starlight.mp3") {
		t.Errorf("unexpected path %s", path)
	}
	if data, _ := os.ReadFile(path); string(data) != "mp3" {
		t.Errorf("unexpected contents %q", data)
	}
}
