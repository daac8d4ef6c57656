package mime

import (
	"mime"
	"net/http"
	"net/url"
	"path/filepath"
	"strings"
)

// MEDIAMIMETYPEEXTENSIONMAP MAPS THE IMAGE/VIDEO MIME TYPES THE GENERATION
// GALLERY ACTUALLY EMITS TO A FILE EXTENSION. TRIMMED FROM THE TEACHER'S
// MUCH BROADER TABLE TO THE FAMILIES §4.7.4 NEEDS FOR MEDIA-TYPE INFERENCE.
var MediaMimeTypeExtensionMap = map[string]string{
	// IMAGES
	"image/jpeg":    ".jpg",
	"image/jpg":     ".jpg",
	"image/pjpeg":   ".jpg",
	"image/png":     ".png",
	"image/apng":    ".apng",
	"image/gif":     ".gif",
	"image/webp":    ".webp",
	"image/avif":    ".avif",
	"image/heic":    ".heic",
	"image/heif":    ".heif",
	"image/bmp":     ".bmp",
	"image/tiff":    ".tiff",
	"image/svg+xml": ".svg",

	// VIDEO
	"video/mp4":        ".mp4",
	"video/mpeg":        ".mpeg",
	"video/ogg":         ".ogv",
	"video/webm":        ".webm",
	"video/x-msvideo":   ".avi",
	"video/quicktime":   ".mov",
	"video/x-matroska":  ".mkv",
	"video/x-flv":       ".flv",
	"video/x-ms-wmv":    ".wmv",
	"video/3gpp":        ".3gp",
}

// GETEXTENSIONFORCONTENTTYPE RETURNS THE APPROPRIATE FILE EXTENSION FOR A
// DOWNLOADED GENERATION, FALLING BACK TO THE STANDARD LIBRARY'S MIME
// REGISTRY, THEN THE URL PATH, AND FINALLY A GENERIC ".video"/".img"/".bin".
func GetExtensionForContentType(contentType string, fileURL string) string {
	contentType = strings.ToLower(strings.TrimSpace(contentType))

	if idx := strings.Index(contentType, ";"); idx != -1 {
		contentType = contentType[:idx]
	}

	if ext, found := MediaMimeTypeExtensionMap[contentType]; found {
		return ext
	}

	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}

	if fileURL != "" {
		if parsedURL, err := url.Parse(fileURL); err == nil {
			if urlExt := filepath.Ext(parsedURL.Path); urlExt != "" {
				return urlExt
			}
		}
	}

	switch {
	case strings.HasPrefix(contentType, "video/"):
		return ".video"
	case strings.HasPrefix(contentType, "image/"):
		return ".img"
	default:
		return ".bin"
	}
}

// MEDIACATEGORY IS THE COARSE CLASSIFICATION OF A DOWNLOADED GENERATION.
type MediaCategory string

const (
	CategoryImage   MediaCategory = "image"
	CategoryVideo   MediaCategory = "video"
	CategoryUnknown MediaCategory = "unknown"
)

// CLASSIFYCONTENTTYPE MAPS A CONTENT-TYPE HEADER TO A MEDIACATEGORY. THE
// GENERATION-DOWNLOAD MANAGER DOES NOT CALL IT.
func ClassifyContentType(contentType string) MediaCategory {
	contentType = strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return CategoryImage
	case strings.HasPrefix(contentType, "video/"):
		return CategoryVideo
	default:
		return CategoryUnknown
	}
}

// SUGGESTEDFILENAME EXTRACTS A FILENAME FROM A CONTENT-DISPOSITION HEADER,
// IF PRESENT, GROUNDED ON THE TEACHER'S `AnalyzeFileType` HANDLING.
func SuggestedFilename(headers http.Header) string {
	cd := headers.Get("Content-Disposition")
	if cd == "" {
		return ""
	}
	idx := strings.Index(cd, "filename=")
	if idx == -1 {
		return ""
	}
	filename := cd[idx+len("filename="):]
	if strings.HasPrefix(filename, "\"") && strings.HasSuffix(filename, "\"") && len(filename) >= 2 {
		filename = filename[1 : len(filename)-1]
	}
	return filename
}
