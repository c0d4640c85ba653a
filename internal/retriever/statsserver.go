package retriever

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StartStatsServer exposes the pipeline counters over HTTP for operators.
// The server shuts down when ctx is cancelled. A failure to listen is
// logged but does not stop the pipeline.
func (r *Retriever) StartStatsServer(ctx context.Context, addr string) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, r.stats.Read())
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("Shutting down stats server: %v", err)
		}
	}()

	go func() {
		log.Printf("Stats server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Stats server: %v", err)
		}
	}()
}
