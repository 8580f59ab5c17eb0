package audio

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// writeTestWAV writes a minimal, valid 16-bit mono PCM WAV file of silent
// samples, enough for wav.Decode to parse successfully.
func writeTestWAV(t *testing.T, samples int16) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "clip.wav")

	const numSamples = 8
	dataSize := numSamples * 2 // 16-bit mono
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create wav: %v", err)
	}
	defer f.Close()

	write := func(v any) {
		if err := binary.Write(f, binary.LittleEndian, v); err != nil {
			t.Fatalf("write wav field: %v", err)
		}
	}

	f.WriteString("RIFF")
	write(uint32(36 + dataSize))
	f.WriteString("WAVE")
	f.WriteString("fmt ")
	write(uint32(16))         // fmt chunk size
	write(uint16(1))          // PCM
	write(uint16(1))          // mono
	write(uint32(44100))      // sample rate
	write(uint32(44100 * 2))  // byte rate
	write(uint16(2))          // block align
	write(uint16(16))         // bits per sample
	f.WriteString("data")
	write(uint32(dataSize))
	for i := 0; i < numSamples; i++ {
		write(samples)
	}
	return path
}

func TestClipCacheLoadCachesDecodedSamples(t *testing.T) {
	path := writeTestWAV(t, 0)
	cache := clipCache{clips: make(map[string][][2]float64)}

	samples, err := cache.load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(samples) == 0 {
		t.Fatalf("expected decoded samples, got none")
	}

	// Remove the backing file; a cached load should not need to re-read it.
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	again, err := cache.load(path)
	if err != nil {
		t.Fatalf("load from cache after file removal: %v", err)
	}
	if len(again) != len(samples) {
		t.Fatalf("cached load returned different sample count: %d vs %d", len(again), len(samples))
	}
}

func TestClipCacheLoadMissingFile(t *testing.T) {
	cache := clipCache{clips: make(map[string][][2]float64)}
	if _, err := cache.load(filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Fatal("expected an error loading a nonexistent clip")
	}
}

func TestSliceStreamerReplaysThenExhausts(t *testing.T) {
	s := &sliceStreamer{samples: [][2]float64{{0.1, 0.1}, {0.2, 0.2}, {0.3, 0.3}}}

	buf := make([][2]float64, 2)
	n, ok := s.Stream(buf)
	if n != 2 || !ok {
		t.Fatalf("first Stream: n=%d ok=%v, want 2/true", n, ok)
	}

	n, ok = s.Stream(buf)
	if n != 1 || !ok {
		t.Fatalf("second Stream: n=%d ok=%v, want 1/true", n, ok)
	}

	n, ok = s.Stream(buf)
	if n != 0 || ok {
		t.Fatalf("third Stream: n=%d ok=%v, want 0/false", n, ok)
	}
	if s.Err() != nil {
		t.Fatalf("Err() = %v, want nil", s.Err())
	}
}

func TestPlayerPlayNoopsWhenNotRunning(t *testing.T) {
	p := NewPlayer()
	// Start() is intentionally not called: no audio device is assumed to
	// exist in this environment. Play must no-op rather than block or panic.
	p.Play(writeTestWAV(t, 0))

	select {
	case <-p.queue:
		t.Fatal("expected Play to drop the request while the player isn't running")
	default:
	}
}

func TestPlayerStopWithoutStartIsSafe(t *testing.T) {
	p := NewPlayer()
	p.Stop() // running is false; CompareAndSwap should make this a no-op.
}
