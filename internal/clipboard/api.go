// Exposes all of the REST APIs related to the shared clipboard in Dropzone.

package clipboard

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/pkg/log"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Registers all of the REST API handlers related to internal package clipboard onto the gin server.
func APIHandlers(router *gin.Engine, service Service, logger log.Logger) {
	clipgroup := router.Group("/api/clipboard")
	{
		clipgroup.GET("", getClipboard(service, logger))
		clipgroup.POST("", updateClipboard(service, logger))
	}
}

func getClipboard(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		clip, err := service.Get(gctx)
		if err != nil {
			resp := errors.AsResponse(err)
			gctx.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		gctx.JSON(http.StatusOK, clip)
	}
}

// updateClipboard returns a handler which replaces the shared clipboard content.
func updateClipboard(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		req := entity.ClipboardUpdate{}
		if binderr := gctx.ShouldBindJSON(&req); binderr != nil {
			logger.WithCtx(gctx).Debug().Err(binderr).Msg("Couldn't bind clipboard update")
			gctx.AbortWithStatusJSON(http.StatusBadRequest, errors.BadRequest(""))
			return
		}
		if _, err := service.Update(gctx, req); err != nil {
			resp := errors.AsResponse(err)
			gctx.AbortWithStatusJSON(resp.Status, resp)
			return
		}
		gctx.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
