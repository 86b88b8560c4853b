// Package stream serves generated chunk meshes over WebSocket so a
// viewer can render the cave while the flood fill is still running.
package stream

import (
	"encoding/binary"
	"encoding/json"
	"log/slog"
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/veinworks/cavemesh/internal/geom"
	"github.com/veinworks/cavemesh/internal/sample"
)

// ProtocolVersion identifies the frame format. Bump on breaking changes.
const ProtocolVersion = 1

// Bootstrap is served as JSON on /bootstrap so viewers can scale the
// grid-space vertices back into world units.
type Bootstrap struct {
	ProtocolVersion int     `json:"protocol_version"`
	Seed            int64   `json:"seed"`
	Resolution      float64 `json:"resolution"`
	SurfaceLevel    float64 `json:"surface_level"`
	ChunkSize       int     `json:"chunk_size"`
}

type subscriber struct {
	id  uint64
	out chan []byte
}

// Server broadcasts chunk-mesh frames to connected viewers. Chunks
// published before a viewer connects are replayed on connect, newest
// buffer per chunk.
type Server struct {
	boot Bootstrap
	log  *slog.Logger

	upgrader websocket.Upgrader
	nextID   atomic.Uint64

	mu      sync.Mutex
	latest  map[sample.ChunkPos][]byte
	subs    map[uint64]*subscriber
	dropped atomic.Int64
}

// NewServer creates a broadcast server with the given bootstrap params.
func NewServer(boot Bootstrap, log *slog.Logger) *Server {
	boot.ProtocolVersion = ProtocolVersion
	boot.ChunkSize = sample.ChunkSize
	return &Server{
		boot:   boot,
		log:    log,
		latest: make(map[sample.ChunkPos][]byte),
		subs:   make(map[uint64]*subscriber),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true }, // dev default
		},
	}
}

// Publish encodes the chunk's current vertex buffer and fans it out.
// It matches mesh.ChunkFunc and may be called from worker goroutines.
func (s *Server) Publish(pos sample.ChunkPos, c *sample.Chunk) {
	frame := EncodeFrame(pos, c.Vertices())

	s.mu.Lock()
	s.latest[pos] = frame
	for _, sub := range s.subs {
		select {
		case sub.out <- frame:
		default:
			s.dropped.Add(1)
		}
	}
	s.mu.Unlock()
}

// Dropped reports how many frames were discarded because a viewer
// could not keep up.
func (s *Server) Dropped() int64 { return s.dropped.Load() }

// Handler returns the HTTP mux serving /bootstrap and /ws.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/bootstrap", s.handleBootstrap)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

func (s *Server) handleBootstrap(rw http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		rw.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}
	rw.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(rw).Encode(s.boot)
}

func (s *Server) handleWS(rw http.ResponseWriter, r *http.Request) {
	if !isLoopbackRemote(r.RemoteAddr) {
		http.Error(rw, "forbidden", http.StatusForbidden)
		return
	}

	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := &subscriber{
		id:  s.nextID.Add(1),
		out: make(chan []byte, 4096),
	}

	// Replay what exists, then register for live frames. Holding the
	// lock across both keeps the replay and the live stream gap-free.
	s.mu.Lock()
	for _, frame := range s.latest {
		select {
		case sub.out <- frame:
		default:
			s.dropped.Add(1)
		}
	}
	s.subs[sub.id] = sub
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.subs, sub.id)
		s.mu.Unlock()
	}()

	s.log.Info("viewer connected", "id", sub.id, "remote", r.RemoteAddr)

	done := make(chan struct{})

	// Reader loop: we expect no messages, but reading drains control
	// frames and detects the peer going away.
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-done:
			s.log.Info("viewer disconnected", "id", sub.id)
			return
		case frame := <-sub.out:
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
				s.log.Info("viewer write failed", "id", sub.id, "err", err)
				return
			}
		}
	}
}

// EncodeFrame packs one chunk mesh into a binary frame:
//
//	x, y, z   int32 little-endian
//	vertices  uint32
//	per vertex: px, py, pz, nx, ny, nz  float32
func EncodeFrame(pos sample.ChunkPos, verts []sample.Vertex) []byte {
	buf := make([]byte, 0, 16+len(verts)*24)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(pos.X)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(pos.Y)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(int32(pos.Z)))
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(verts)))
	for _, v := range verts {
		for _, f := range []float64{
			v.Position[0], v.Position[1], v.Position[2],
			v.Normal[0], v.Normal[1], v.Normal[2],
		} {
			buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(float32(f)))
		}
	}
	return buf
}

// DecodeFrame is the inverse of EncodeFrame.
func DecodeFrame(frame []byte) (sample.ChunkPos, []sample.Vertex, bool) {
	if len(frame) < 16 {
		return sample.ChunkPos{}, nil, false
	}
	pos := sample.ChunkPos{
		X: int(int32(binary.LittleEndian.Uint32(frame[0:]))),
		Y: int(int32(binary.LittleEndian.Uint32(frame[4:]))),
		Z: int(int32(binary.LittleEndian.Uint32(frame[8:]))),
	}
	n := int(binary.LittleEndian.Uint32(frame[12:]))
	if len(frame) != 16+n*24 {
		return sample.ChunkPos{}, nil, false
	}
	verts := make([]sample.Vertex, n)
	off := 16
	for i := range verts {
		vals := [6]float64{}
		for j := range vals {
			vals[j] = float64(math.Float32frombits(binary.LittleEndian.Uint32(frame[off:])))
			off += 4
		}
		verts[i].Position = geom.V(vals[0], vals[1], vals[2])
		verts[i].Normal = geom.V(vals[3], vals[4], vals[5])
	}
	return pos, verts, true
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
