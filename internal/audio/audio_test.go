package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"math/rand"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	if got := int(MaxDuration/time.Second) * SampleRate; got != MaxSamples {
		t.Errorf("MaxSamples = %d, want %d", MaxSamples, got)
	}
}

// --- Extensions ---

func TestModalityOf(t *testing.T) {
	tests := []struct {
		ext  string
		want Modality
	}{
		{".wav", ModalityAudio},
		{".MP3", ModalityAudio},
		{"flac", ModalityAudio},
		{".aif", ModalityAudio},
		{".aiff", ModalityAudio},
		{".au", ModalityAudio},
		{".mp4", ModalityVideo},
		{".MOV", ModalityVideo},
		{".webm", ModalityVideo},
	}
	for _, tt := range tests {
		got, err := ModalityOf(tt.ext)
		if err != nil {
			t.Errorf("ModalityOf(%q) error: %v", tt.ext, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ModalityOf(%q) = %q, want %q", tt.ext, got, tt.want)
		}
	}
}

func TestModalityOfUnsupported(t *testing.T) {
	for _, ext := range []string{".txt", "", ".wma", ".mp4.exe"} {
		_, err := ModalityOf(ext)
		var ufe *UnsupportedFormatError
		if !errors.As(err, &ufe) {
			t.Errorf("ModalityOf(%q) error = %v, want UnsupportedFormatError", ext, err)
		}
	}
}

func TestExtOf(t *testing.T) {
	if got := ExtOf("Song.Final.FLAC"); got != ".flac" {
		t.Errorf("ExtOf = %q, want .flac", got)
	}
	if got := ExtOf("noext"); got != "" {
		t.Errorf("ExtOf(noext) = %q, want empty", got)
	}
}

func TestSupportedExtensions(t *testing.T) {
	if got := len(SupportedExtensions()); got != 13 {
		t.Errorf("len(SupportedExtensions) = %d, want 13", got)
	}
}

// --- PCM bytes ---

func TestBytesToSamples(t *testing.T) {
	buf := make([]byte, 9)
	binary.LittleEndian.PutUint32(buf[0:], math.Float32bits(0.5))
	binary.LittleEndian.PutUint32(buf[4:], math.Float32bits(-1))
	got := BytesToSamples(buf)
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2 (partial sample dropped)", len(got))
	}
	if got[0] != 0.5 || got[1] != -1 {
		t.Errorf("samples = %v, want [0.5 -1]", got)
	}
}

// --- Resample ---

func TestResampleSameRate(t *testing.T) {
	in := []float32{0.1, 0.2, 0.3}
	out, err := Resample(in, SampleRate, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if len(out) != len(in) {
		t.Errorf("len = %d, want %d", len(out), len(in))
	}
}

func TestResampleHalvesRate(t *testing.T) {
	in := make([]float32, 44100)
	for i := range in {
		in[i] = float32(0.5 * math.Sin(2*math.Pi*440*float64(i)/44100))
	}
	out, err := Resample(in, 44100, SampleRate)
	if err != nil {
		t.Fatal(err)
	}
	if d := len(out) - SampleRate; d < -2 || d > 0 {
		t.Errorf("len = %d, want %d", len(out), SampleRate)
	}
	for i, s := range out {
		if s > 1 || s < -1 {
			t.Fatalf("sample[%d] = %v out of range", i, s)
		}
	}
}

func TestResampleKeepsTail(t *testing.T) {
	for _, n := range []int{441, 4410, 44100, 441000} {
		in := make([]float32, n)
		for i := range in {
			in[i] = 0.25
		}
		out, err := Resample(in, 44100, SampleRate)
		if err != nil {
			t.Fatal(err)
		}
		want := resampledLen(n, 44100, SampleRate)
		if d := len(out) - want; d < -2 || d > 0 {
			t.Errorf("Resample(%d samples) len = %d, want %d", n, len(out), want)
		}
	}
}

func TestResampledLen(t *testing.T) {
	tests := []struct{ n, from, to, want int }{
		{44100, 44100, 22050, 22050},
		{441, 44100, 22050, 221},
		{16000, 16000, 22050, 22050},
		{0, 48000, 22050, 0},
	}
	for _, tt := range tests {
		if got := resampledLen(tt.n, tt.from, tt.to); got != tt.want {
			t.Errorf("resampledLen(%d, %d, %d) = %d, want %d", tt.n, tt.from, tt.to, got, tt.want)
		}
	}
}

func TestResampleInvalidRate(t *testing.T) {
	if _, err := Resample([]float32{1}, 0, SampleRate); err == nil {
		t.Error("expected error for zero source rate")
	}
}

// --- Loader with a fake toolchain ---

type fakeTool struct {
	probe      Probe
	samples    []float32
	rate       int
	decodeErr  error
	calls      int
	decoded    []string
	extracted  []string
	extractErr error
}

func (f *fakeTool) Probe(_ context.Context, _ string) (Probe, error) {
	f.calls++
	return f.probe, nil
}

func (f *fakeTool) Decode(_ context.Context, path string, _ time.Duration) ([]float32, int, error) {
	f.calls++
	f.decoded = append(f.decoded, path)
	return f.samples, f.rate, f.decodeErr
}

func (f *fakeTool) ExtractAudio(_ context.Context, _, dst string) error {
	f.calls++
	f.extracted = append(f.extracted, dst)
	if f.extractErr != nil {
		return f.extractErr
	}
	return os.WriteFile(dst, []byte("RIFF"), 0o644)
}

func withAudio() Probe {
	return Probe{Streams: []Stream{
		{Index: 0, CodecType: "video"},
		{Index: 1, CodecType: "audio", SampleRate: "22050", Channels: 2},
	}}
}

func TestLoaderUnsupportedFailsFast(t *testing.T) {
	tool := &fakeTool{}
	l := NewLoader(tool, t.TempDir())

	_, err := l.Load(context.Background(), "notes.txt", ".txt")
	var ufe *UnsupportedFormatError
	if !errors.As(err, &ufe) {
		t.Fatalf("error = %v, want UnsupportedFormatError", err)
	}
	if tool.calls != 0 {
		t.Errorf("tool calls = %d, want 0", tool.calls)
	}
}

func TestLoaderAudioDirect(t *testing.T) {
	tool := &fakeTool{samples: make([]float32, SampleRate*2), rate: SampleRate}
	l := NewLoader(tool, t.TempDir())

	w, err := l.Load(context.Background(), "clip.wav", ".wav")
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", w.SampleRate, SampleRate)
	}
	if len(tool.decoded) != 1 || tool.decoded[0] != "clip.wav" {
		t.Errorf("decoded = %v, want [clip.wav]", tool.decoded)
	}
	if len(tool.extracted) != 0 {
		t.Errorf("audio input should not be demuxed, extracted = %v", tool.extracted)
	}
}

func TestLoaderTruncatesToMaxDuration(t *testing.T) {
	tool := &fakeTool{samples: make([]float32, SampleRate*35), rate: SampleRate}
	l := NewLoader(tool, t.TempDir())

	w, err := l.Load(context.Background(), "long.flac", ".flac")
	if err != nil {
		t.Fatal(err)
	}
	if w.Duration() > MaxDuration {
		t.Errorf("Duration = %v, want <= %v", w.Duration(), MaxDuration)
	}
	if len(w.Samples) != MaxSamples {
		t.Errorf("len = %d, want %d", len(w.Samples), MaxSamples)
	}
}

func TestLoaderVideoNoAudioTrack(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{probe: Probe{Streams: []Stream{{CodecType: "video"}}}}
	l := NewLoader(tool, dir)

	_, err := l.Load(context.Background(), "silent.mp4", ".mp4")
	var nat *NoAudioTrackError
	if !errors.As(err, &nat) {
		t.Fatalf("error = %v, want NoAudioTrackError", err)
	}
	assertEmptyDir(t, dir)
}

func TestLoaderVideoRemovesIntermediate(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{probe: withAudio(), samples: make([]float32, 1000), rate: SampleRate}
	l := NewLoader(tool, dir)

	if _, err := l.Load(context.Background(), "clip.mkv", ".mkv"); err != nil {
		t.Fatal(err)
	}
	if len(tool.extracted) != 1 {
		t.Fatalf("extracted = %v, want one intermediate", tool.extracted)
	}
	if filepath.Dir(tool.extracted[0]) != dir {
		t.Errorf("intermediate %s not in temp dir %s", tool.extracted[0], dir)
	}
	if tool.decoded[0] != tool.extracted[0] {
		t.Errorf("decoded %s, want intermediate %s", tool.decoded[0], tool.extracted[0])
	}
	assertEmptyDir(t, dir)
}

func TestLoaderVideoCleansUpOnDecodeFailure(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{probe: withAudio(), decodeErr: errors.New("corrupt")}
	l := NewLoader(tool, dir)

	_, err := l.Load(context.Background(), "broken.avi", ".avi")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
	assertEmptyDir(t, dir)
}

func TestLoaderUniqueIntermediates(t *testing.T) {
	dir := t.TempDir()
	tool := &fakeTool{probe: withAudio(), samples: make([]float32, 100), rate: SampleRate}
	l := NewLoader(tool, dir)

	for i := 0; i < 3; i++ {
		if _, err := l.Load(context.Background(), "a.webm", ".webm"); err != nil {
			t.Fatal(err)
		}
	}
	seen := map[string]bool{}
	for _, p := range tool.extracted {
		if seen[p] {
			t.Errorf("intermediate name %s reused", p)
		}
		seen[p] = true
	}
}

func TestLoaderEmptySignal(t *testing.T) {
	tool := &fakeTool{rate: SampleRate}
	l := NewLoader(tool, t.TempDir())

	_, err := l.Load(context.Background(), "empty.ogg", ".ogg")
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("error = %v, want DecodeError", err)
	}
}

func TestLoaderCancelledIsNotDecodeError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for _, ext := range []string{".mp3", ".mp4"} {
		tool := &fakeTool{probe: withAudio(), decodeErr: errors.New("signal: killed"), extractErr: errors.New("signal: killed")}
		l := NewLoader(tool, t.TempDir())

		_, err := l.Load(ctx, "clip"+ext, ext)
		if !errors.Is(err, context.Canceled) {
			t.Errorf("%s: error = %v, want context.Canceled", ext, err)
		}
		var de *DecodeError
		if errors.As(err, &de) {
			t.Errorf("%s: cancelled load reported as DecodeError", ext)
		}
	}
}

// --- FFmpeg-backed (skipped without ffmpeg) ---

func TestFFmpegLoadWAV(t *testing.T) {
	requireFFmpeg(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "noise.wav")
	rng := rand.New(rand.NewSource(1))
	samples := make([]int16, 44100*2)
	for i := range samples {
		samples[i] = int16(rng.Intn(20000) - 10000)
	}
	writeWAV(t, path, samples, 44100)

	l := NewLoader(NewFFmpeg("", ""), dir)
	w, err := l.Load(context.Background(), path, ".wav")
	if err != nil {
		t.Fatal(err)
	}
	if w.SampleRate != SampleRate {
		t.Errorf("SampleRate = %d, want %d", w.SampleRate, SampleRate)
	}
	if w.Duration() > MaxDuration || len(w.Samples) == 0 {
		t.Errorf("Duration = %v, want (0, %v]", w.Duration(), MaxDuration)
	}
}

func requireFFmpeg(t *testing.T) {
	t.Helper()
	for _, bin := range []string{"ffmpeg", "ffprobe"} {
		if _, err := exec.LookPath(bin); err != nil {
			t.Skipf("%s not available", bin)
		}
	}
}

// writeWAV writes mono 16-bit PCM with a canonical 44-byte header.
func writeWAV(t *testing.T, path string, samples []int16, rate int) {
	t.Helper()
	data := make([]byte, 44+len(samples)*2)
	copy(data[0:], "RIFF")
	binary.LittleEndian.PutUint32(data[4:], uint32(36+len(samples)*2))
	copy(data[8:], "WAVEfmt ")
	binary.LittleEndian.PutUint32(data[16:], 16)
	binary.LittleEndian.PutUint16(data[20:], 1)
	binary.LittleEndian.PutUint16(data[22:], 1)
	binary.LittleEndian.PutUint32(data[24:], uint32(rate))
	binary.LittleEndian.PutUint32(data[28:], uint32(rate*2))
	binary.LittleEndian.PutUint16(data[32:], 2)
	binary.LittleEndian.PutUint16(data[34:], 16)
	copy(data[36:], "data")
	binary.LittleEndian.PutUint32(data[40:], uint32(len(samples)*2))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(data[44+i*2:], uint16(s))
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp dir has %d leftover entries", len(entries))
	}
}
