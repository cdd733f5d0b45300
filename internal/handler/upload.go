package handler

import (
	"errors"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/service"
	"github.com/resdiihd/puppeteer-glb-renderer/pkg/response"
)

const maxModelSize = 100 * 1024 * 1024 // 100MB

type UploadHandler struct {
	service *service.UploadService
}

func NewUploadHandler(svc *service.UploadService) *UploadHandler {
	return &UploadHandler{service: svc}
}

// Model handles POST /api/models
func (h *UploadHandler) Model(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if file.Size > maxModelSize {
		return response.ValidationError(c, "File size exceeds 100MB limit", map[string]interface{}{
			"maxSize":  maxModelSize,
			"fileSize": file.Size,
		})
	}

	ext := strings.ToLower(filepath.Ext(file.Filename))
	if ext != ".glb" && ext != ".gltf" {
		return response.ValidationError(c, "Invalid file type. Supported: GLB, GLTF", map[string]interface{}{
			"extension": ext,
		})
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to read uploaded file")
	}
	defer f.Close()

	result, err := h.service.SaveModel(f, file.Filename)
	if err != nil {
		return response.ServiceError(c, err.Error())
	}

	return response.Created(c, result)
}

// DeleteModel handles DELETE /api/models/:modelId
func (h *UploadHandler) DeleteModel(c *fiber.Ctx) error {
	modelID := c.Params("modelId")
	if modelID == "" {
		return response.ValidationError(c, "Model ID is required", nil)
	}

	if err := h.service.DeleteModel(modelID); err != nil {
		if errors.Is(err, service.ErrModelNotFound) {
			return response.NotFound(c, "Model not found")
		}
		return response.ServiceError(c, err.Error())
	}

	return c.SendStatus(fiber.StatusNoContent)
}
