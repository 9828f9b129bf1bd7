package files

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/warden/pkg/httputil"
)

func TestValidateUpload(t *testing.T) {
	tests := []struct {
		name     string
		fileName string
		mimeType string
		size     int64
		wantErr  string
	}{
		{name: "png", fileName: "photo.png", mimeType: "image/png", size: 1024},
		{name: "upper case jpeg", fileName: "PHOTO.JPEG", mimeType: "image/jpeg", size: 1024},
		{name: "csv at limit", fileName: "data.csv", mimeType: "text/csv", size: MaxUploadSize},
		{
			name:     "too large",
			fileName: "data.csv",
			mimeType: "text/csv",
			size:     MaxUploadSize + 1,
			wantErr:  "File size exceeds maximum allowed size of 10MB",
		},
		{
			name:     "disallowed extension",
			fileName: "setup.exe",
			mimeType: "application/octet-stream",
			size:     10,
			wantErr:  "File type .exe is not allowed. Allowed types: csv, jpeg, jpg, json, png",
		},
		{
			name:     "double extension with wrong mime",
			fileName: "evil.exe.png",
			mimeType: "application/x-msdownload",
			size:     10,
			wantErr:  "File MIME type application/x-msdownload does not match expected type image/png",
		},
		{
			name:     "no extension",
			fileName: "README",
			mimeType: "text/plain",
			size:     10,
			wantErr:  "File type . is not allowed. Allowed types: csv, jpeg, jpg, json, png",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateUpload(tt.fileName, tt.mimeType, tt.size)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			var appErr *httputil.Error
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, httputil.KindInvalidInput, appErr.Kind)
			assert.Equal(t, tt.wantErr, appErr.Message)
		})
	}
}

func TestScan(t *testing.T) {
	t.Run("clean image", func(t *testing.T) {
		result := Scan("holiday.png", "image/png", []byte{0x89, 'P', 'N', 'G'})
		assert.True(t, result.IsSafe())
		assert.Empty(t, result.Warnings)
		assert.Equal(t, int64(4), result.FileSize)
		assert.Equal(t, "image/png", result.FileType)
	})

	t.Run("suspicious name", func(t *testing.T) {
		result := Scan("evil.exe.png", "image/png", []byte("x"))
		assert.False(t, result.IsSafe())
		assert.Equal(t, []string{"Suspicious pattern in filename: exe"}, result.SuspiciousPatterns)
	})

	t.Run("script in json", func(t *testing.T) {
		result := Scan("data.json", "application/json", []byte(`{"payload":"<SCRIPT>alert(1)</SCRIPT>"}`))
		assert.False(t, result.IsSafe())
		assert.Contains(t, result.SuspiciousPatterns, "Potential script injection in JSON content")
	})

	t.Run("javascript url in json", func(t *testing.T) {
		result := Scan("data.json", "application/json", []byte(`{"href":"javascript:void(0)"}`))
		assert.False(t, result.IsSafe())
	})

	t.Run("invalid json warns", func(t *testing.T) {
		result := Scan("data.json", "application/json", []byte(`{not json`))
		assert.True(t, result.IsSafe())
		assert.Equal(t, []string{"Invalid JSON format"}, result.Warnings)
	})

	t.Run("large file warns", func(t *testing.T) {
		result := Scan("big.csv", "text/csv", make([]byte, LargeFileWarning+1))
		assert.True(t, result.IsSafe())
		assert.Equal(t, []string{"File size is unusually large"}, result.Warnings)
	})
}

func TestUniqueName(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	name, err := UniqueName("png", now)
	require.NoError(t, err)
	assert.Regexp(t, `^1700000000123_[0-9a-z]{6}\.png$`, name)

	other, err := UniqueName("png", now)
	require.NoError(t, err)
	assert.NotEqual(t, name, other)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", Extension("a.b.PNG"))
	assert.Equal(t, "", Extension("noext"))
	assert.True(t, strings.HasSuffix(strings.Join(allowedExtensions(), ","), "png"))
}
