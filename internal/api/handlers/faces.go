package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/facegroup/internal/facegroup"
	"github.com/your-org/facegroup/pkg/dto"
)

// allCollections as collection_id lists faces from every collection.
const allCollections = "*"

// ImageOpener streams a stored source image.
type ImageOpener interface {
	OpenObject(ctx context.Context, key string) (io.ReadCloser, int64, string, error)
}

type FaceHandler struct {
	svc    *facegroup.Service
	images ImageOpener
}

func NewFaceHandler(svc *facegroup.Service, images ImageOpener) *FaceHandler {
	return &FaceHandler{svc: svc, images: images}
}

func (h *FaceHandler) List(c *gin.Context) {
	var q dto.FaceQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	filter := facegroup.Filter{
		CollectionID: q.CollectionID,
		GroupID:      q.GroupID,
		NameContains: q.Name,
	}
	switch filter.CollectionID {
	case "":
		filter.CollectionID = h.svc.CollectionID()
	case allCollections:
		filter.CollectionID = ""
	}

	faces, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := dto.FaceListResponse{Faces: make([]dto.FaceResponse, 0, len(faces)), Total: len(faces)}
	for _, f := range faces {
		resp.Faces = append(resp.Faces, dto.NewFaceResponse(f))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *FaceHandler) Get(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("faceId"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.NewFaceResponse(*rec))
}

// Image proxies the face's source image from object storage.
func (h *FaceHandler) Image(c *gin.Context) {
	rec, err := h.svc.Get(c.Request.Context(), c.Param("faceId"))
	if err != nil {
		writeError(c, err)
		return
	}

	body, size, contentType, err := h.images.OpenObject(c.Request.Context(), rec.ImageRef)
	if err != nil {
		slog.Warn("open face image", "face_id", rec.FaceID, "key", rec.ImageRef, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": "image not found"})
		return
	}
	defer body.Close()

	if contentType == "" {
		contentType = "image/jpeg"
	}
	c.DataFromReader(http.StatusOK, size, contentType, body, nil)
}

// Rename handles POST /faces/:faceId/rename.
func (h *FaceHandler) Rename(c *gin.Context) {
	var req dto.RenameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.rename(c, c.Param("faceId"), req.Name)
}

// Name handles POST /name, which carries the face ID in the body.
func (h *FaceHandler) Name(c *gin.Context) {
	var req dto.NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.rename(c, req.FaceID, req.Name)
}

func (h *FaceHandler) rename(c *gin.Context, faceID, name string) {
	res, err := h.svc.Rename(c.Request.Context(), faceID, name)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RenameResponse{
		FaceID:  faceID,
		GroupID: res.GroupID,
		Name:    name,
		Updated: res.Updated,
	})
}

// writeError maps service errors to status codes.
func writeError(c *gin.Context, err error) {
	var partial *facegroup.PartialRenameError
	switch {
	case errors.As(err, &partial):
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":    err.Error(),
			"group_id": partial.GroupID,
			"updated":  partial.Updated,
			"total":    partial.Total,
		})
	case errors.Is(err, facegroup.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, facegroup.ErrInvalidName):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
