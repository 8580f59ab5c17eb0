// Package audio plays the WAV alert clips named by a TimerDefinition's
// AudioFile field: a bounded channel feeding a single goroutine that
// owns the speaker, so a burst of simultaneous timer alerts can never
// pile up concurrent speaker.Play calls.
package audio

import (
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/speaker"
	"github.com/gopxl/beep/wav"
)

const (
	sampleRate      = beep.SampleRate(44100)
	speakerBufferMs = 100
	queueDepth      = 8
	minReplayGap    = 150 * time.Millisecond
)

// clipCache decodes each alert file once and keeps its samples resident,
// since the same AudioFile is typically replayed many times per session.
type clipCache struct {
	mu    sync.Mutex
	clips map[string][][2]float64
}

// Player is the alert-audio engine: one command queue, one goroutine,
// one speaker. Construct with NewPlayer and call Start before the first
// Play.
type Player struct {
	cache      clipCache
	queue      chan string
	stop       chan struct{}
	wg         sync.WaitGroup
	running    atomic.Bool
	lastPlayed atomic.Int64   // UnixNano of the last playback start
}

// NewPlayer constructs a Player. It does not touch the speaker until
// Start is called, matching the engine's init-then-start split.
func NewPlayer() *Player {
	return &Player{
		cache: clipCache{clips: make(map[string][][2]float64)},
		queue: make(chan string, queueDepth),
		stop:  make(chan struct{}),
	}
}

// Start initializes the speaker and begins the playback goroutine.
func (p *Player) Start() error {
	if p.running.Load() {
		return nil
	}
	if err := speaker.Init(sampleRate, sampleRate.N(time.Millisecond*speakerBufferMs)); err != nil {
		return fmt.Errorf("audio: speaker init: %w", err)
	}
	p.running.Store(true)
	p.wg.Add(1)
	go p.loop()
	return nil
}

// Stop halts the playback goroutine. It does not close the shared
// speaker device, since beep provides no way to reopen it afterward.
func (p *Player) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	close(p.stop)
	p.wg.Wait()
}

// Play enqueues path for playback, dropping the request rather than
// blocking if the queue is full: a flood of simultaneous timer alerts
// should never back up the signal-handler dispatch loop that calls this.
func (p *Player) Play(path string) {
	if !p.running.Load() || path == "" {
		return
	}
	select {
	case p.queue <- path:
	default:
	}
}

func (p *Player) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case path := <-p.queue:
			p.playOne(path)
		}
	}
}

func (p *Player) playOne(path string) {
	if time.Since(time.Unix(0, p.lastPlayed.Load())) < minReplayGap {
		return
	}
	samples, err := p.cache.load(path)
	if err != nil {
		return
	}
	p.lastPlayed.Store(time.Now().UnixNano())
	speaker.Play(&sliceStreamer{samples: samples})
}

func (c *clipCache) load(path string) ([][2]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cached, ok := c.clips[path]; ok {
		return cached, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("audio: open %s: %w", path, err)
	}
	defer f.Close()

	streamer, _, err := wav.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("audio: decode %s: %w", path, err)
	}
	defer streamer.Close()

	var samples [][2]float64
	buf := make([][2]float64, 512)
	for {
		n, ok := streamer.Stream(buf)
		if n > 0 {
			samples = append(samples, buf[:n]...)
		}
		if !ok {
			break
		}
	}
	c.clips[path] = samples
	return samples, nil
}

// sliceStreamer replays a decoded, resident clip without re-touching the
// filesystem, so a repeated alert is cheap.
type sliceStreamer struct {
	samples [][2]float64
	pos     int
}

func (s *sliceStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	n = copy(samples, s.samples[s.pos:])
	s.pos += n
	return n, n > 0
}

func (s *sliceStreamer) Err() error { return nil }
