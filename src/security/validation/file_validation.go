package validation

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/username/tradelink/src/logger"
)

// AllowedClientContentTypes lists the client-declared MIME types accepted per input format.
var AllowedClientContentTypes = map[string]map[string]bool{
	"csv": {
		"text/csv":                 true,
		"application/csv":          true,
		"application/vnd.ms-excel": true,
		"text/plain":               true,
		"application/octet-stream": true,
	},
	"json": {
		"application/json":         true,
		"text/json":                true,
		"text/plain":               true,
		"application/octet-stream": true,
	},
}

// ValidateClientContentType checks the Content-Type header provided by the client for format.
// An empty header is accepted; the magic byte check still runs.
func ValidateClientContentType(contentType, format string) error {
	if contentType == "" {
		return nil
	}
	allowed := AllowedClientContentTypes[strings.ToLower(format)]
	mediaType := strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	if !allowed[mediaType] {
		logger.L.Warn("Disallowed client-declared Content-Type", "contentType", contentType, "format", format)
		return fmt.Errorf("client-declared file type '%s' is not allowed for %s upload", contentType, format)
	}
	return nil
}

// ValidateFileContentByMagicBytes checks the actual file content signature and rewinds file.
// Observation exports are text, so anything detected as binary is rejected.
func ValidateFileContentByMagicBytes(file io.ReadSeeker) (string, error) {
	if file == nil {
		return "", fmt.Errorf("file is nil")
	}

	buffer := make([]byte, 512)
	n, err := file.Read(buffer)
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("failed to read file for content type checking: %w", err)
	}

	if _, seekErr := file.Seek(0, io.SeekStart); seekErr != nil {
		return "", fmt.Errorf("failed to reset file read pointer: %w", seekErr)
	}

	detectedContentType := http.DetectContentType(buffer[:n])
	detectedContentType = strings.ToLower(strings.Split(detectedContentType, ";")[0])

	allowedDetectedTypes := map[string]bool{
		"text/plain":               true,
		"text/csv":                 true,
		"application/json":         true,
		"application/octet-stream": true,
	}

	if !allowedDetectedTypes[detectedContentType] {
		logger.L.Warn("Disallowed detected file content type (magic bytes)", "detectedContentType", detectedContentType)
		return detectedContentType, fmt.Errorf("detected file content type '%s' is not consistent with an observation export", detectedContentType)
	}

	logger.L.Debug("File content type (magic bytes) validated", "detectedContentType", detectedContentType)
	return detectedContentType, nil
}
