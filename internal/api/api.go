// Package api is the producer-side HTTP surface: enqueue jobs, inspect
// queues and manage dead letters.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"redis-job-worker/internal/job"
	"redis-job-worker/internal/metrics"
	"redis-job-worker/internal/queue"
	"redis-job-worker/internal/store"
)

type Deps struct {
	Registry    *job.Registry
	Runtime     *job.Runtime
	DeadLetters *queue.DeadLetters
	Stats       *store.Store
	Metrics     *metrics.Metrics
	Log         *zap.Logger
}

type server struct {
	Deps
	log *zap.Logger
}

func NewRouter(d Deps) *gin.Engine {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	s := &server{Deps: d, log: d.Log.Named("api")}

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.POST("/jobs", s.enqueue)
	r.GET("/queues/:name", s.queueInfo)
	r.GET("/queues/:name/dead", s.listDead)
	r.POST("/queues/:name/dead/:id/replay", s.replayDead)
	r.DELETE("/queues/:name/dead", s.purgeDead)
	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics.Handler()))
	}
	return r
}

func (s *server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Debug("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}

type enqueueRequest struct {
	JobClass string      `json:"jobClass" binding:"required"`
	Payload  *queue.Data `json:"payload"`
	Queue    string      `json:"queue"`
	Prepend  bool        `json:"prepend"`
}

func (s *server) enqueue(c *gin.Context) {
	var req enqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !s.Registry.Has(req.JobClass) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "unknown job class " + strconv.Quote(req.JobClass),
			"classes": s.Registry.Classes(),
		})
		return
	}

	j, err := s.Registry.New(s.Runtime, req.JobClass)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if req.Payload != nil {
		j.SetData(req.Payload)
	}
	if req.Queue != "" {
		j.SetQueue(req.Queue)
	}

	mode := job.Append
	if req.Prepend {
		mode = job.Prepend
	}
	if err := j.Dispatch(c.Request.Context(), mode); err != nil {
		s.log.Error("enqueue failed", zap.String("class", req.JobClass), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"queue": j.Queue(), "jobClass": j.Class()})
}

func (s *server) queueInfo(c *gin.Context) {
	name := c.Param("name")
	ctx := c.Request.Context()

	length, err := s.Runtime.Transport.Len(ctx, name)
	if err != nil {
		s.internalError(c, err)
		return
	}
	if s.Metrics != nil {
		s.Metrics.SetQueueLength(name, length)
	}

	resp := gin.H{"queue": name, "length": length}
	if s.DeadLetters != nil {
		dead, err := s.DeadLetters.Len(ctx, name)
		if err != nil {
			s.internalError(c, err)
			return
		}
		resp["dead"] = dead
	}
	if s.Stats != nil {
		st, err := s.Stats.Stats(ctx, name)
		if err != nil {
			s.internalError(c, err)
			return
		}
		resp["stats"] = st
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) listDead(c *gin.Context) {
	if !s.requireDeadLetters(c) {
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	entries, err := s.DeadLetters.List(c.Request.Context(), c.Param("name"), offset, limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (s *server) replayDead(c *gin.Context) {
	if !s.requireDeadLetters(c) {
		return
	}
	name, id := c.Param("name"), c.Param("id")

	entry, err := s.DeadLetters.Replay(c.Request.Context(), name, id)
	if errors.Is(err, queue.ErrDeadEntryNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}

	s.log.Info("dead letter replayed", zap.String("queue", name), zap.String("id", id))
	c.JSON(http.StatusAccepted, gin.H{"id": entry.ID, "queue": name, "status": "replayed"})
}

func (s *server) purgeDead(c *gin.Context) {
	if !s.requireDeadLetters(c) {
		return
	}
	n, err := s.DeadLetters.Purge(c.Request.Context(), c.Param("name"))
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"purged": n})
}

func (s *server) requireDeadLetters(c *gin.Context) bool {
	if s.DeadLetters == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "dead letters are disabled"})
		return false
	}
	return true
}

func (s *server) internalError(c *gin.Context, err error) {
	s.log.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func queryInt(c *gin.Context, key string, def int64) (int64, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil || n < 0 {
		return 0, errors.New(key + " must be a non-negative integer")
	}
	return n, nil
}

// Serve runs srv until ctx is done, then shuts it down gracefully.
func Serve(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errc := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("http server shutting down")
	return srv.Shutdown(shutdownCtx)
}
