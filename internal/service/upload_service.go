package service

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/resdiihd/puppeteer-glb-renderer/internal/model"
)

// ErrModelNotFound means the asset reference does not resolve to an
// uploaded model file.
var ErrModelNotFound = errors.New("model not found")

// UploadService stores uploaded GLB/GLTF models on disk under a flat
// <modelID>.<ext> layout and resolves asset references back to paths.
type UploadService struct {
	dir string
}

func NewUploadService(dir string) (*UploadService, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create models dir: %w", err)
	}
	return &UploadService{dir: dir}, nil
}

// SaveModel streams an uploaded model to disk and returns its assigned
// id. The original file name is kept only for the response; the stored
// name is the id plus the original extension.
func (s *UploadService) SaveModel(src io.Reader, fileName string) (*model.UploadModelResponse, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	if ext != ".glb" && ext != ".gltf" {
		return nil, fmt.Errorf("unsupported model format %q", ext)
	}

	modelID := uuid.New().String()
	path := filepath.Join(s.dir, modelID+ext)

	dst, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create model file: %w", err)
	}
	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("store model file: %w", err)
	}

	return &model.UploadModelResponse{
		ModelID:  modelID,
		FileName: fileName,
		Size:     written,
	}, nil
}

// ModelPath resolves a model id to its stored file.
func (s *UploadService) ModelPath(modelID string) (string, error) {
	for _, ext := range []string{".glb", ".gltf"} {
		path := filepath.Join(s.dir, modelID+ext)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", ErrModelNotFound
}

// DeleteModel removes a stored model file.
func (s *UploadService) DeleteModel(modelID string) error {
	path, err := s.ModelPath(modelID)
	if err != nil {
		return err
	}
	return os.Remove(path)
}
