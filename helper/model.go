package helper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knights-analytics/hugot"
)

// DefaultModelDir is used when no model directory is configured.
const DefaultModelDir = "./models"

// PrepareModel makes sure the ONNX export of modelName is available below
// modelDir and returns its local path. An existing directory is reused as is.
func PrepareModel(modelDir string, modelName string, onnxFilePath string) (string, error) {
	if modelName == "" {
		return "", NewError("prepare model", fmt.Errorf("model name is empty"))
	}
	if modelDir == "" {
		modelDir = DefaultModelDir
	}

	modelPath := filepath.Join(modelDir, SanitizeModelName(modelName))
	if _, err := os.Stat(modelPath); err == nil {
		return modelPath, nil
	} else if !os.IsNotExist(err) {
		return "", NewError("prepare model", err)
	}

	if err := os.MkdirAll(modelDir, 0750); err != nil {
		return "", NewError("prepare model", fmt.Errorf("failed to create model directory: %w", err))
	}

	downloadOptions := hugot.NewDownloadOptions()
	if onnxFilePath != "" {
		downloadOptions.OnnxFilePath = onnxFilePath
	}
	downloadedPath, err := hugot.DownloadModel(modelName, modelDir, downloadOptions)
	if err != nil {
		return "", NewError("prepare model", fmt.Errorf("failed to download model: %w", err))
	}

	return downloadedPath, nil
}

// SanitizeModelName turns a hub name like "org/name" into a directory name.
func SanitizeModelName(modelName string) string {
	return strings.ReplaceAll(modelName, "/", "_")
}
