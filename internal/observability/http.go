package observability

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// StatusFunc supplies the live /status document.
type StatusFunc func() map[string]any

// DebugServer builds the optional debug/metrics HTTP endpoint. It is only
// started when a listen address is configured; the mirror loop itself never
// touches it.
func DebugServer(logger zerolog.Logger, status StatusFunc) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	startedAt := time.Now()

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:3000"},
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(startedAt).String(),
			"service": "oledview",
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	r.GET("/status", func(c *gin.Context) {
		doc := gin.H{"uptime": time.Since(startedAt).String()}
		if status != nil {
			for k, v := range status() {
				doc[k] = v
			}
		}
		c.JSON(http.StatusOK, doc)
	})

	return r
}
