// Package emit serializes a job's enriched products to the output artifact.
package emit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/farmaops/catalog-enricher/internal/model"
)

const (
	workedDir    = "worked"
	outputSuffix = "-output.json"
)

// OutputPath returns the artifact path for a source file:
// <dir(sourcePath)>/worked/<fileName sans extension>-output.json.
func OutputPath(sourcePath, fileName string) string {
	base := strings.TrimSuffix(fileName, filepath.Ext(fileName))
	return filepath.Join(filepath.Dir(sourcePath), workedDir, base+outputSuffix)
}

// Emit writes the enriched set as pretty-printed JSON to the output path,
// creating the staging directory if absent. The write goes to a temp file
// in the same directory followed by a rename, so a half-written artifact is
// never visible at the final path.
func Emit(products []model.EnrichedProduct, sourcePath, fileName string) (string, error) {
	outPath := OutputPath(sourcePath, fileName)
	outDir := filepath.Dir(outPath)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	if products == nil {
		products = []model.EnrichedProduct{}
	}
	b, err := json.MarshalIndent(products, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal output artifact: %w", err)
	}

	tmp, err := os.CreateTemp(outDir, filepath.Base(outPath)+".tmp-*")
	if err != nil {
		return "", fmt.Errorf("create temp artifact: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("write temp artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Rename(tmpName, outPath); err != nil {
		_ = os.Remove(tmpName)
		return "", fmt.Errorf("publish artifact: %w", err)
	}
	return outPath, nil
}
