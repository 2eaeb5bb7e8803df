package middlewares

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// This middleware handles CORS policy for Dropzone server.
// The tus headers are allowed and exposed so browsers can resume uploads.
func CORSMiddleware(addr string) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		gctx.Writer.Header().Set("Access-Control-Allow-Origin", addr)
		gctx.Writer.Header().Set("Vary", "Origin")
		gctx.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		gctx.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, X-Correlation-ID, accept, origin, Cache-Control, X-Requested-With, Tus-Resumable, Upload-Length, Upload-Offset, Upload-Metadata")
		gctx.Writer.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, X-File-Expires-At, X-Correlation-ID, Location, Upload-Offset, Upload-Length, Tus-Resumable")
		gctx.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, HEAD, PATCH, DELETE")

		if gctx.Request.Method == "OPTIONS" {
			gctx.AbortWithStatus(http.StatusNoContent)
			return
		}

		gctx.Next()
	}
}
