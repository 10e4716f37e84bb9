package hub

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// serveStatus runs a tiny gin HTTP server exposing liveness and
// connection-count information, gated entirely behind PLEASE_STATUS_ADDR.
func serveStatus(addr string, h *Hub) error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"active_connections": h.ActiveConnections(),
			"ctx_cap":            h.CtxCap,
		})
	})

	return r.Run(addr)
}
