package files

import (
	"crypto/rand"
	"encoding/json"
	"fmt"
	"math/big"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/platinummonkey/warden/pkg/httputil"
)

const (
	// MaxUploadSize is the largest accepted upload
	MaxUploadSize = 10 * 1024 * 1024
	// LargeFileWarning is the size above which a scan adds a warning
	LargeFileWarning = 50 * 1024 * 1024
)

// AllowedTypes maps each accepted extension to the only MIME type it may
// be declared with
var AllowedTypes = map[string]string{
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"json": "application/json",
	"csv":  "text/csv",
}

var suspiciousNamePatterns = []string{"script", "exec", "cmd", "bat", "exe", "php", "asp", "jsp"}

// Extension returns the lower-cased text after the last dot of name, or ""
func Extension(name string) string {
	ext := path.Ext(name)
	if ext == "" {
		return ""
	}
	return strings.ToLower(ext[1:])
}

// ValidateUpload checks size, extension and declared MIME type. Failures are
// InvalidInput errors whose message is meant for the uploader.
func ValidateUpload(name, mimeType string, size int64) error {
	if size > MaxUploadSize {
		return httputil.InvalidInput(fmt.Sprintf("File size exceeds maximum allowed size of %dMB", MaxUploadSize/1024/1024))
	}

	ext := Extension(name)
	expected, ok := AllowedTypes[ext]
	if !ok {
		return httputil.InvalidInput(fmt.Sprintf("File type .%s is not allowed. Allowed types: %s", ext, strings.Join(allowedExtensions(), ", ")))
	}

	if mimeType != expected {
		return httputil.InvalidInput(fmt.Sprintf("File MIME type %s does not match expected type %s", mimeType, expected))
	}

	return nil
}

func allowedExtensions() []string {
	exts := make([]string, 0, len(AllowedTypes))
	for ext := range AllowedTypes {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// ScanResult is the outcome of the content scan, persisted with the record
type ScanResult struct {
	FileSize           int64    `json:"fileSize"`
	FileType           string   `json:"fileType"`
	SuspiciousPatterns []string `json:"suspiciousPatterns"`
	Warnings           []string `json:"warnings"`
}

// IsSafe reports whether the scan found nothing suspicious. Warnings do not
// make a file unsafe.
func (s *ScanResult) IsSafe() bool {
	return len(s.SuspiciousPatterns) == 0
}

// Scan inspects the file name and, for JSON, the content
func Scan(name, mimeType string, content []byte) *ScanResult {
	result := &ScanResult{
		FileSize:           int64(len(content)),
		FileType:           mimeType,
		SuspiciousPatterns: []string{},
		Warnings:           []string{},
	}

	if result.FileSize > LargeFileWarning {
		result.Warnings = append(result.Warnings, "File size is unusually large")
	}

	lower := strings.ToLower(name)
	for _, pattern := range suspiciousNamePatterns {
		if strings.Contains(lower, pattern) {
			result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Suspicious pattern in filename: "+pattern)
		}
	}

	if mimeType == "application/json" {
		var doc interface{}
		if err := json.Unmarshal(content, &doc); err != nil {
			result.Warnings = append(result.Warnings, "Invalid JSON format")
		} else {
			// Re-encoding normalises escapes so "script" is caught too
			normalised, _ := json.Marshal(doc)
			text := strings.ToLower(string(normalised))
			if strings.Contains(text, "script") || strings.Contains(text, "javascript:") {
				result.SuspiciousPatterns = append(result.SuspiciousPatterns, "Potential script injection in JSON content")
			}
		}
	}

	return result
}

const base36 = "0123456789abcdefghijklmnopqrstuvwxyz"

// UniqueName returns <unix-millis>_<6 random base36 chars>.<ext>
func UniqueName(ext string, now time.Time) (string, error) {
	suffix := make([]byte, 6)
	limit := big.NewInt(int64(len(base36)))
	for i := range suffix {
		n, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", fmt.Errorf("failed to generate file name: %w", err)
		}
		suffix[i] = base36[n.Int64()]
	}
	return strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix) + "." + ext, nil
}
