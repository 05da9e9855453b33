package audio

import "fmt"

// UnsupportedFormatError reports an extension outside both allow-lists.
type UnsupportedFormatError struct {
	Ext string
}

func (e *UnsupportedFormatError) Error() string {
	if e.Ext == "" {
		return "unsupported file type: missing extension"
	}
	return fmt.Sprintf("unsupported file type: %s", e.Ext)
}

// NoAudioTrackError reports a video container without an audio stream.
type NoAudioTrackError struct {
	Path string
}

func (e *NoAudioTrackError) Error() string {
	return "uploaded video has no audio track"
}

// DecodeError reports a media file that could not be read or decoded.
type DecodeError struct {
	Path string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
