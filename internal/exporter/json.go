package exporter

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"meterfill/pkg/contracts/domain"
)

// WriteJSON writes the full batch result, resolutions and summary
// included, as one indented JSON document.
func WriteJSON(path string, result domain.BatchResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal batch result: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}
