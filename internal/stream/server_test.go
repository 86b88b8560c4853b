package stream

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/sample"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testVerts(n int) []sample.Vertex {
	verts := make([]sample.Vertex, n)
	for i := range verts {
		verts[i] = sample.Vertex{
			Position: geom.V(float64(i), float64(i)*0.5, -float64(i)),
			Normal:   geom.V(0, 1, 0),
		}
	}
	return verts
}

func TestFrameRoundTrip(t *testing.T) {
	pos := sample.ChunkPos{X: -5, Y: 2, Z: 100}
	verts := testVerts(7)

	frame := EncodeFrame(pos, verts)
	gotPos, gotVerts, ok := DecodeFrame(frame)
	if !ok {
		t.Fatal("DecodeFrame() not ok")
	}
	if gotPos != pos {
		t.Errorf("pos = %v, want %v", gotPos, pos)
	}
	if len(gotVerts) != len(verts) {
		t.Fatalf("len(verts) = %d, want %d", len(gotVerts), len(verts))
	}
	for i := range verts {
		if gotVerts[i].Position != verts[i].Position {
			t.Errorf("vertex %d position = %v, want %v", i, gotVerts[i].Position, verts[i].Position)
		}
	}
}

func TestDecodeFrameRejectsTruncated(t *testing.T) {
	frame := EncodeFrame(sample.ChunkPos{X: 1}, testVerts(2))
	for _, cut := range []int{0, 8, 15, len(frame) - 1} {
		if _, _, ok := DecodeFrame(frame[:cut]); ok {
			t.Errorf("DecodeFrame(frame[:%d]) ok, want rejection", cut)
		}
	}
}

func publishChunk(s *Server, pos sample.ChunkPos, verts []sample.Vertex) {
	c := &sample.Chunk{Pos: pos}
	c.AppendVertices(verts...)
	s.Publish(pos, c)
}

func TestBootstrapEndpoint(t *testing.T) {
	srv := NewServer(Bootstrap{Seed: 42, Resolution: 2, SurfaceLevel: 0.5}, testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/bootstrap")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var boot Bootstrap
	if err := json.NewDecoder(resp.Body).Decode(&boot); err != nil {
		t.Fatal(err)
	}
	if boot.ProtocolVersion != ProtocolVersion {
		t.Errorf("ProtocolVersion = %d, want %d", boot.ProtocolVersion, ProtocolVersion)
	}
	if boot.Seed != 42 || boot.Resolution != 2 {
		t.Errorf("boot = %+v, want seed 42 resolution 2", boot)
	}
	if boot.ChunkSize != sample.ChunkSize {
		t.Errorf("ChunkSize = %d, want %d", boot.ChunkSize, sample.ChunkSize)
	}
}

func TestViewerReceivesReplayAndLiveFrames(t *testing.T) {
	srv := NewServer(Bootstrap{Seed: 7, Resolution: 1, SurfaceLevel: 0.5}, testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	// Published before any viewer connects; must be replayed.
	early := sample.ChunkPos{X: 1, Y: 0, Z: 0}
	publishChunk(srv, early, testVerts(3))

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	defer conn.Close()

	readFrame := func() (sample.ChunkPos, []sample.Vertex) {
		t.Helper()
		conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		typ, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatal(err)
		}
		if typ != websocket.BinaryMessage {
			t.Fatalf("message type = %d, want binary", typ)
		}
		pos, verts, ok := DecodeFrame(data)
		if !ok {
			t.Fatal("received undecodable frame")
		}
		return pos, verts
	}

	pos, verts := readFrame()
	if pos != early || len(verts) != 3 {
		t.Errorf("replay frame = %v with %d verts, want %v with 3", pos, len(verts), early)
	}

	late := sample.ChunkPos{X: 0, Y: 2, Z: 0}
	// The subscriber registers inside the handler goroutine; poll until
	// the live frame arrives in case publish races the registration.
	deadline := time.Now().Add(5 * time.Second)
	for {
		publishChunk(srv, late, testVerts(6))
		pos, verts = readFrame()
		if pos == late {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("never received live frame for %v", late)
		}
	}
	if len(verts) != 6 {
		t.Errorf("live frame vertex count = %d, want 6", len(verts))
	}
}

func TestBootstrapRejectsNonGet(t *testing.T) {
	srv := NewServer(Bootstrap{}, testLogger())
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/bootstrap", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
