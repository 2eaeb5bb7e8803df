// Exposes all of the REST APIs related to shared files in Dropzone.

package files

import (
	"Dropzone/internal/entity"
	"Dropzone/internal/errors"
	"Dropzone/pkg/log"
	"io"
	"mime"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// Name of the multipart field carrying the uploaded file.
const uploadField = "file"

// Registers all of the REST API handlers related to internal package files onto the gin server.
func APIHandlers(router *gin.Engine, service Service, logger log.Logger) {
	router.GET("/api/files", listFiles(service, logger))
	router.DELETE("/api/files/:id", deleteFile(service, logger))
	router.POST("/api/upload", uploadFile(service, logger))
	router.GET("/api/download/:id", downloadFile(service, logger))
}

// respondError writes err as JSON, whatever its type.
func respondError(gctx *gin.Context, err error) {
	resp := errors.AsResponse(err)
	gctx.AbortWithStatusJSON(resp.Status, resp)
}

func listFiles(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		files, err := service.ListFiles(gctx)
		if err != nil {
			respondError(gctx, err)
			return
		}
		gctx.JSON(http.StatusOK, files)
	}
}

// uploadFile streams the multipart file part straight into storage, nothing is buffered in memory.
func uploadFile(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		reader, err := gctx.Request.MultipartReader()
		if err != nil {
			respondError(gctx, errors.BadRequest("Expected a multipart/form-data upload"))
			return
		}
		for {
			part, err := reader.NextPart()
			if err == io.EOF {
				respondError(gctx, errors.BadRequest("Missing file field"))
				return
			} else if err != nil {
				logger.WithCtx(gctx).Warn().Err(err).Msg("Error occured while reading multipart upload")
				respondError(gctx, errors.BadRequest(""))
				return
			}
			if part.FormName() != uploadField {
				part.Close()
				continue
			}
			file, err := service.Upload(gctx, entity.FileUpload{Name: part.FileName()}, part)
			part.Close()
			if err != nil {
				respondError(gctx, err)
				return
			}
			gctx.JSON(http.StatusOK, gin.H{
				"status": "success",
				"file":   file,
			})
			return
		}
	}
}

func downloadFile(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		file, content, err := service.Open(gctx, gctx.Param("id"))
		if err != nil {
			respondError(gctx, err)
			return
		}
		defer content.Close()

		disposition := mime.FormatMediaType("attachment", map[string]string{"filename": file.Name})
		gctx.DataFromReader(http.StatusOK, file.Size, file.ContentType, content, map[string]string{
			"Content-Disposition": disposition,
			"X-File-Expires-At":   strconv.FormatInt(file.ExpiresAt, 10),
		})
	}
}

func deleteFile(service Service, logger log.Logger) gin.HandlerFunc {
	return func(gctx *gin.Context) {
		if err := service.Delete(gctx, gctx.Param("id")); err != nil {
			respondError(gctx, err)
			return
		}
		gctx.JSON(http.StatusOK, gin.H{"status": "success"})
	}
}
