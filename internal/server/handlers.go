package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/satindergrewal/genreid/internal/audio"
	"github.com/satindergrewal/genreid/internal/genre"
)

func (s *Server) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"message":           "Music Genre Classification API running",
		"expected_features": s.svc.ExpectedFeatures(),
		"use":               "POST /predict with form-data key 'file' (audio or video)",
	})
}

func (s *Server) predict(c *gin.Context) {
	if s.opts.MaxUploadBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.opts.MaxUploadBytes)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "File too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file uploaded"})
		return
	}

	ext := audio.ExtOf(fh.Filename)
	if _, err := audio.ModalityOf(ext); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported file type: " + ext})
		return
	}

	tmp := filepath.Join(s.opts.TempDir, "upload-"+uuid.New().String()+ext)
	defer func() {
		if err := os.Remove(tmp); err != nil && !os.IsNotExist(err) {
			s.log.WithError(err).WithField("path", tmp).Warn("failed to remove upload")
		}
	}()
	if err := c.SaveUploadedFile(fh, tmp); err != nil {
		s.log.WithError(err).Error("failed to stage upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not store upload"})
		return
	}

	res, err := s.svc.Classify(c.Request.Context(), tmp, ext)
	if err != nil {
		status, body := errorResponse(err)
		if status >= http.StatusInternalServerError {
			s.log.WithError(err).WithField("file", fh.Filename).Error("classification failed")
		}
		c.JSON(status, body)
		return
	}
	c.JSON(http.StatusOK, res)
}

// errorResponse maps pipeline errors to a status code and JSON body.
func errorResponse(err error) (int, gin.H) {
	var (
		unsupported *audio.UnsupportedFormatError
		noAudio     *audio.NoAudioTrackError
		decode      *audio.DecodeError
		inference   *genre.InferenceError
	)
	switch {
	case errors.As(err, &unsupported):
		return http.StatusBadRequest, gin.H{"error": "Unsupported file type: " + unsupported.Ext}
	case errors.As(err, &noAudio):
		return http.StatusUnprocessableEntity, gin.H{"error": "Uploaded video has no audio track."}
	case errors.As(err, &decode):
		return http.StatusUnprocessableEntity, gin.H{"error": "Could not decode audio", "details": fmt.Sprint(decode.Err)}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout, gin.H{"error": "Request cancelled"}
	case errors.As(err, &inference):
		return http.StatusInternalServerError, gin.H{"error": inference.Error()}
	default:
		return http.StatusInternalServerError, gin.H{"error": err.Error()}
	}
}
