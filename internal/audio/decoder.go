package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// Stream is one entry of an ffprobe stream listing.
type Stream struct {
	Index      int    `json:"index"`
	CodecType  string `json:"codec_type"`
	CodecName  string `json:"codec_name"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

// Probe is the subset of ffprobe output the loader needs.
type Probe struct {
	Streams []Stream `json:"streams"`
}

// Audio returns the first audio stream, if any.
func (p Probe) Audio() (Stream, bool) {
	for _, s := range p.Streams {
		if s.CodecType == "audio" {
			return s, true
		}
	}
	return Stream{}, false
}

// Tool is the media toolchain the Loader drives.
type Tool interface {
	// Probe lists the streams of a media file.
	Probe(ctx context.Context, path string) (Probe, error)
	// Decode returns mono float32 samples at the source sample rate,
	// truncated to limit.
	Decode(ctx context.Context, path string, limit time.Duration) ([]float32, int, error)
	// ExtractAudio demuxes the first audio stream of src into a mono PCM
	// WAV file at dst.
	ExtractAudio(ctx context.Context, src, dst string) error
}

// FFmpeg implements Tool by running the ffmpeg and ffprobe binaries.
type FFmpeg struct {
	FFmpegPath  string
	FFprobePath string
}

// NewFFmpeg returns an FFmpeg tool. Empty paths resolve through $PATH.
func NewFFmpeg(ffmpegPath, ffprobePath string) *FFmpeg {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &FFmpeg{FFmpegPath: ffmpegPath, FFprobePath: ffprobePath}
}

func (f *FFmpeg) Probe(ctx context.Context, path string) (Probe, error) {
	cmd := exec.CommandContext(ctx, f.FFprobePath,
		"-v", "error",
		"-show_entries", "stream=index,codec_type,codec_name,sample_rate,channels",
		"-of", "json",
		path,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: %w%s", path, err, stderrSuffix(&stderr))
	}

	var p Probe
	if err := json.Unmarshal(out, &p); err != nil {
		return Probe{}, fmt.Errorf("ffprobe %s: parse output: %w", path, err)
	}
	return p, nil
}

// Decode runs FFmpeg to decode the first audio stream of a file to raw
// little-endian float32 PCM, downmixed to mono at the stream's own rate.
func (f *FFmpeg) Decode(ctx context.Context, path string, limit time.Duration) ([]float32, int, error) {
	p, err := f.Probe(ctx, path)
	if err != nil {
		return nil, 0, err
	}
	s, ok := p.Audio()
	if !ok {
		return nil, 0, fmt.Errorf("%s: no audio stream", path)
	}
	rate, err := strconv.Atoi(s.SampleRate)
	if err != nil || rate <= 0 {
		return nil, 0, fmt.Errorf("%s: bad sample rate %q", path, s.SampleRate)
	}

	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-i", path,
		"-map", "0:a:0",
		"-t", strconv.FormatFloat(limit.Seconds(), 'f', 3, 64),
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", "1",
		"-loglevel", "error",
		"pipe:1",
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return nil, 0, fmt.Errorf("ffmpeg decode %s: %w%s", path, err, stderrSuffix(&stderr))
	}
	return BytesToSamples(out), rate, nil
}

func (f *FFmpeg) ExtractAudio(ctx context.Context, src, dst string) error {
	cmd := exec.CommandContext(ctx, f.FFmpegPath,
		"-y",
		"-i", src,
		"-map", "0:a:0",
		"-vn",
		"-acodec", "pcm_s16le",
		"-ac", "1",
		"-loglevel", "error",
		dst,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg extract audio %s: %w%s", src, err, stderrSuffix(&stderr))
	}
	return nil
}

// BytesToSamples converts little-endian float32 PCM to samples. A trailing
// partial sample is dropped.
func BytesToSamples(buf []byte) []float32 {
	samples := make([]float32, len(buf)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return samples
}

func stderrSuffix(b *bytes.Buffer) string {
	msg := strings.TrimSpace(b.String())
	if msg == "" {
		return ""
	}
	return ": " + msg
}

var errEmptySignal = errors.New("no audio samples decoded")
