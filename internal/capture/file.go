package capture

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/oszuidwest/hearingai/internal/util"
)

// fileChunkFrames is the number of frames delivered per callback, matching a
// 10 ms device period at 44.1 kHz.
const fileChunkFrames = 441

// File replays a WAV file as if it were a capture device. Samples are
// delivered as 16-bit PCM in the file's channel layout.
type File struct {
	path     string
	format   Format
	realtime bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewFile opens path and reads its header. When realtime is set, chunks are
// paced at the file's sample rate; otherwise the file is replayed as fast as
// the analyzer consumes it.
func NewFile(path string, realtime bool) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, util.WrapError("open audio file", err)
	}
	defer f.Close() //nolint:errcheck // Read-only header probe

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s: not a valid WAV file", path)
	}

	done := make(chan struct{})
	close(done)

	return &File{
		path: path,
		format: Format{
			SampleRate:    int(dec.SampleRate),
			Channels:      int(dec.NumChans),
			BitsPerSample: 16,
		},
		realtime: realtime,
		done:     done,
	}, nil
}

// Format returns the PCM layout the file is replayed with.
func (s *File) Format() Format {
	return s.format
}

// Done is closed when replay finishes or is stopped.
func (s *File) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Start begins replay. The requested sample rate must match the file; the
// device ID is ignored.
func (s *File) Start(_ string, format Format, onData DataFunc, onStop StopFunc) (Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return Device{}, ErrAlreadyRunning
	}
	if format.SampleRate != s.format.SampleRate {
		return Device{}, fmt.Errorf("%w: file is %d Hz, analyzer expects %d Hz",
			ErrFormatMismatch, s.format.SampleRate, format.SampleRate)
	}

	f, err := os.Open(s.path)
	if err != nil {
		return Device{}, util.WrapError("open audio file", err)
	}
	dec := wav.NewDecoder(f)
	if err := dec.FwdToPCM(); err != nil {
		_ = f.Close()
		return Device{}, util.WrapError("locate PCM data", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	go s.replay(ctx, f, dec, onData, onStop, s.done)

	return Device{ID: s.path, Name: filepath.Base(s.path)}, nil
}

// Stop ends replay and waits for the replay goroutine to exit.
func (s *File) Stop() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Devices reports the file as the only device.
func (s *File) Devices() ([]Device, error) {
	return []Device{{ID: s.path, Name: filepath.Base(s.path), IsDefault: true}}, nil
}

func (s *File) replay(ctx context.Context, f *os.File, dec *wav.Decoder, onData DataFunc, onStop StopFunc, done chan struct{}) {
	defer close(done)
	defer f.Close() //nolint:errcheck // Read-only replay

	channels := s.format.Channels
	depth := int(dec.BitDepth)
	buf := &goaudio.IntBuffer{
		Format:         dec.Format(),
		Data:           make([]int, fileChunkFrames*channels),
		SourceBitDepth: depth,
	}
	out := make([]byte, len(buf.Data)*2)

	var ticker *time.Ticker
	if s.realtime {
		ticker = time.NewTicker(time.Duration(fileChunkFrames) * time.Second / time.Duration(s.format.SampleRate))
		defer ticker.Stop()
	}

	var stopErr error
	for {
		if ctx.Err() != nil {
			break
		}

		n, err := dec.PCMBuffer(buf)
		if err != nil && err != io.EOF {
			stopErr = util.WrapError("decode audio file", err)
			break
		}
		if n == 0 {
			break
		}

		n -= n % channels
		for i, v := range buf.Data[:n] {
			binary.LittleEndian.PutUint16(out[i*2:], uint16(toInt16(v, depth))) //nolint:gosec // Two's complement reinterpretation
		}
		onData(out[:n*2], n*2, 16, channels)

		if ticker != nil {
			select {
			case <-ticker.C:
			case <-ctx.Done():
			}
		}
	}

	slog.Debug("file replay finished", "path", s.path, "error", stopErr)
	if onStop != nil {
		onStop(stopErr)
	}
}

// toInt16 rescales a decoded sample of the given bit depth to 16 bits.
// 8-bit WAV samples are unsigned.
func toInt16(v, depth int) int16 {
	switch {
	case depth == 8:
		return int16((v - 128) << 8) //nolint:gosec // Range is 8-bit
	case depth > 16:
		return int16(v >> (depth - 16)) //nolint:gosec // Shifted into 16-bit range
	default:
		return int16(v) //nolint:gosec // Already 16-bit
	}
}
