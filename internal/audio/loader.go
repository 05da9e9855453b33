package audio

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Loader turns media files into analysis-ready waveforms.
type Loader struct {
	tool   Tool
	tmpDir string
	log    *logrus.Entry
}

// NewLoader creates a Loader. Intermediate files for video demuxing go to
// tmpDir (os.TempDir() when empty).
func NewLoader(tool Tool, tmpDir string) *Loader {
	if tmpDir == "" {
		tmpDir = os.TempDir()
	}
	return &Loader{
		tool:   tool,
		tmpDir: tmpDir,
		log:    logrus.WithField("component", "loader"),
	}
}

// Load decodes the file at path, treating it according to ext. Video
// containers have their audio demuxed into a temporary WAV first; that file
// is removed before Load returns, whatever the outcome.
func (l *Loader) Load(ctx context.Context, path, ext string) (Waveform, error) {
	modality, err := ModalityOf(ext)
	if err != nil {
		return Waveform{}, err
	}

	src := path
	if modality == ModalityVideo {
		p, err := l.tool.Probe(ctx, path)
		if err != nil {
			return Waveform{}, decodeError(ctx, path, err)
		}
		if _, ok := p.Audio(); !ok {
			return Waveform{}, &NoAudioTrackError{Path: path}
		}

		tmp := filepath.Join(l.tmpDir, "genreid-"+uuid.New().String()+".wav")
		defer l.remove(tmp)

		if err := l.tool.ExtractAudio(ctx, path, tmp); err != nil {
			return Waveform{}, decodeError(ctx, path, err)
		}
		src = tmp
	}

	return l.decode(ctx, src)
}

func (l *Loader) decode(ctx context.Context, path string) (Waveform, error) {
	samples, rate, err := l.tool.Decode(ctx, path, MaxDuration)
	if err != nil {
		return Waveform{}, decodeError(ctx, path, err)
	}
	if len(samples) == 0 {
		return Waveform{}, &DecodeError{Path: path, Err: errEmptySignal}
	}

	if rate != SampleRate {
		samples, err = Resample(samples, rate, SampleRate)
		if err != nil {
			return Waveform{}, &DecodeError{Path: path, Err: err}
		}
	}
	if len(samples) > MaxSamples {
		samples = samples[:MaxSamples]
	}
	if len(samples) == 0 {
		return Waveform{}, &DecodeError{Path: path, Err: errEmptySignal}
	}

	l.log.WithFields(logrus.Fields{
		"source_rate": rate,
		"samples":     len(samples),
	}).Debug("decoded waveform")

	return Waveform{Samples: samples, SampleRate: SampleRate}, nil
}

// decodeError blames the media for a tool failure unless the caller gave
// up, in which case the context error is returned as is.
func decodeError(ctx context.Context, path string, err error) error {
	if cerr := ctx.Err(); cerr != nil {
		return cerr
	}
	return &DecodeError{Path: path, Err: err}
}

func (l *Loader) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		l.log.WithError(err).WithField("path", path).Warn("failed to remove intermediate audio")
	}
}
