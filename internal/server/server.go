// Package server exposes genre classification over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/satindergrewal/genreid/internal/genre"
)

// Classifier is the inference service behind the HTTP routes.
type Classifier interface {
	Classify(ctx context.Context, path, ext string) (*genre.Result, error)
	ExpectedFeatures() int
}

// Options configures a Server.
type Options struct {
	Addr           string
	TempDir        string // uploads are staged here
	MaxUploadBytes int64
	CORSOrigins    []string
}

// Server routes upload requests to a Classifier.
type Server struct {
	svc    Classifier
	opts   Options
	engine *gin.Engine
	log    *logrus.Entry
}

// New builds the router. gin runs in release mode; access logs and
// recovered panics go through logrus.
func New(svc Classifier, opts Options) *Server {
	if opts.TempDir == "" {
		opts.TempDir = os.TempDir()
	}
	s := &Server{
		svc:  svc,
		opts: opts,
		log:  logrus.WithField("component", "http"),
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(s.accessLog())
	r.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		s.log.WithField("panic", recovered).Error("handler panicked")
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}))
	if len(opts.CORSOrigins) > 0 {
		r.Use(cors.New(cors.Config{
			AllowOrigins: opts.CORSOrigins,
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Accept"},
			MaxAge:       12 * time.Hour,
		}))
	}

	r.GET("/", s.home)
	r.POST("/predict", s.predict)
	// Clients that want upload progress post here; the response is the
	// same as /predict.
	r.POST("/predict_stream", s.predict)

	s.engine = r
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.engine }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.WithField("addr", s.opts.Addr).Info("listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
			"client":  c.ClientIP(),
		})
		switch {
		case c.Writer.Status() >= 500:
			entry.Error("request")
		case c.Writer.Status() >= 400:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}
