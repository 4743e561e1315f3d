package stream

import (
	"context"
	"io"
	"net/http"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
	"github.com/satindergrewal/moodscore/internal/audio"
	"github.com/satindergrewal/moodscore/internal/logging"
)

// DefaultMP3Bitrate is the encoder bitrate in kbit/s.
const DefaultMP3Bitrate = 192

// HTTPHandler serves the mixed music as a chunked MP3 stream. Each connection
// spawns an FFmpeg process to encode PCM -> MP3 in real-time.
type HTTPHandler struct {
	broadcaster *Broadcaster
	logger      *log.Logger
	bitrate     int
}

// NewHTTPHandler creates an HTTP stream handler. A bitrate of 0 selects
// DefaultMP3Bitrate.
func NewHTTPHandler(b *Broadcaster, bitrate int, logger *log.Logger) *HTTPHandler {
	if bitrate <= 0 {
		bitrate = DefaultMP3Bitrate
	}
	if logger == nil {
		logger = logging.Component(nil, "stream")
	}
	return &HTTPHandler{broadcaster: b, logger: logger, bitrate: bitrate}
}

func (h *HTTPHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/mpeg")
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Connection", "close")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("ICY-Name", "moodscore")

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// FFmpeg: PCM stdin -> MP3 stdout
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "s16le",
		"-ar", strconv.Itoa(audio.SampleRate),
		"-ac", strconv.Itoa(audio.Channels),
		"-i", "pipe:0",
		"-codec:a", "libmp3lame",
		"-b:a", strconv.Itoa(h.bitrate)+"k",
		"-f", "mp3",
		"-fflags", "nobuffer",
		"-flush_packets", "1",
		"-loglevel", "error",
		"pipe:1",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		h.logger.Error("mp3 stream: stdin pipe", "err", err)
		return
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		h.logger.Error("mp3 stream: stdout pipe", "err", err)
		return
	}

	if err := cmd.Start(); err != nil {
		h.logger.Error("mp3 stream: ffmpeg start", "err", err)
		http.Error(w, "encoder unavailable", http.StatusServiceUnavailable)
		return
	}

	listener := h.broadcaster.Subscribe()
	defer h.broadcaster.Unsubscribe(listener)

	h.logger.Info("mp3 listener connected", "remote", r.RemoteAddr, "listeners", h.broadcaster.ListenerCount())
	defer h.logger.Info("mp3 listener disconnected", "remote", r.RemoteAddr)

	// Feed PCM frames to FFmpeg
	go func() {
		defer stdin.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case <-listener.Done():
				return
			case frame, ok := <-listener.C:
				if !ok {
					return
				}
				pcm := audio.SamplesToBytes(frame)
				if _, err := stdin.Write(pcm); err != nil {
					return
				}
			}
		}
	}()

	// Read MP3 from FFmpeg and write to HTTP response
	buf := make([]byte, 4096)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			if _, writeErr := w.Write(buf[:n]); writeErr != nil {
				break
			}
			flusher.Flush()
		}
		if err != nil {
			if err != io.EOF {
				h.logger.Warn("mp3 stream: ffmpeg read", "err", err)
			}
			break
		}
	}

	cmd.Wait()
}
