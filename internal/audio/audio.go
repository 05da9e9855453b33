package audio

import (
	"path/filepath"
	"strings"
	"time"
)

const (
	SampleRate  = 22050            // analysis rate every waveform is resampled to
	MaxDuration = 30 * time.Second // only the head of a clip is analysed
	MaxSamples  = SampleRate * 30  // samples in MaxDuration at SampleRate
)

// Modality is the kind of container a clip arrived in.
type Modality string

const (
	ModalityAudio Modality = "audio"
	ModalityVideo Modality = "video"
)

var (
	audioExts = []string{".wav", ".mp3", ".ogg", ".flac", ".m4a", ".au", ".aiff", ".aif"}
	videoExts = []string{".mp4", ".mov", ".mkv", ".avi", ".webm"}
)

// Waveform is decoded mono PCM at SampleRate, normalized to [-1, 1].
type Waveform struct {
	Samples    []float32
	SampleRate int
}

// Duration returns the playing time of the waveform.
func (w Waveform) Duration() time.Duration {
	if w.SampleRate == 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// ModalityOf maps a file extension (with or without the leading dot, any
// case) to its modality. Unknown extensions return *UnsupportedFormatError.
func ModalityOf(ext string) (Modality, error) {
	e := normalizeExt(ext)
	for _, a := range audioExts {
		if e == a {
			return ModalityAudio, nil
		}
	}
	for _, v := range videoExts {
		if e == v {
			return ModalityVideo, nil
		}
	}
	return "", &UnsupportedFormatError{Ext: e}
}

// ExtOf returns the lowercase extension of a file name.
func ExtOf(name string) string {
	return normalizeExt(filepath.Ext(name))
}

// SupportedExtensions lists every accepted extension, audio first.
func SupportedExtensions() []string {
	out := make([]string, 0, len(audioExts)+len(videoExts))
	out = append(out, audioExts...)
	return append(out, videoExts...)
}

func normalizeExt(ext string) string {
	e := strings.ToLower(strings.TrimSpace(ext))
	if e != "" && !strings.HasPrefix(e, ".") {
		e = "." + e
	}
	return e
}
