package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

var (
	imageExts = []string{"jpg", "jpeg", "png", "gif", "bmp", "tiff", "webp"}
	videoExts = []string{"mp4", "avi", "mov", "mkv"}
)

// EnsureDir creates a directory if it doesn't exist
func EnsureDir(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0755)
	}
	return nil
}

// GetFileExtension returns the lower-cased file extension without the dot
func GetFileExtension(filename string) string {
	ext := filepath.Ext(filename)
	if len(ext) > 0 {
		return strings.ToLower(ext[1:])
	}
	return ""
}

// IsImageFile checks if a file has an image extension
func IsImageFile(filename string) bool {
	return hasExtension(filename, imageExts)
}

// IsVideoFile checks if a file has a supported video extension
func IsVideoFile(filename string) bool {
	return hasExtension(filename, videoExts)
}

func hasExtension(filename string, exts []string) bool {
	ext := GetFileExtension(filename)
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// FrameFilename names a persisted frame by its output sequence number and
// timestamp, e.g. frame_0003_t12.50s.jpg
func FrameFilename(seq int, timestamp float64, format string) string {
	return fmt.Sprintf("frame_%04d_t%.2fs.%s", seq, timestamp, format)
}

// ListImageFiles lists the image files directly inside dir in alphabetical
// order of their file names
func ListImageFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsImageFile(entry.Name()) {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Slice(files, func(i, j int) bool {
		return filepath.Base(files[i]) < filepath.Base(files[j])
	})
	return files, nil
}

// ListVideoFiles resolves path to the videos to process. A file must carry a
// video extension; a directory yields its videos sorted case-insensitively.
func ListVideoFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		if !IsVideoFile(path) {
			return nil, fmt.Errorf("not a supported video file: %s", path)
		}
		return []string{path}, nil
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, entry := range entries {
		if !entry.IsDir() && IsVideoFile(entry.Name()) {
			files = append(files, filepath.Join(path, entry.Name()))
		}
	}
	SortCaseInsensitive(files)
	return files, nil
}

// SortCaseInsensitive sorts paths by lower-cased base name
func SortCaseInsensitive(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		return strings.ToLower(filepath.Base(paths[i])) < strings.ToLower(filepath.Base(paths[j]))
	})
}

// Stem returns the base name of a path without its extension
func Stem(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// FileExists checks if a file exists and is not a directory
func FileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

// SanitizeFilename removes or replaces invalid characters in filenames
func SanitizeFilename(filename string) string {
	// Replace invalid characters with underscores
	invalid := []string{"/", "\\", ":", "*", "?", "\"", "<", ">", "|"}
	result := filename

	for _, char := range invalid {
		result = strings.ReplaceAll(result, char, "_")
	}

	// Remove leading/trailing spaces and dots
	result = strings.Trim(result, " .")

	return result
}

// FormatFileSize formats file size in human-readable format
func FormatFileSize(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}

	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
