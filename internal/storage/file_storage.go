package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Security errors
var (
	ErrPathTraversal = errors.New("path traversal detected")
	ErrFileNotFound  = errors.New("file not found")
)

// BlockedExtensions contains file extensions that are never kept on stored files.
// Uploads carrying them are stored without an extension.
var BlockedExtensions = map[string]bool{
	".exe": true, ".bat": true, ".cmd": true, ".com": true,
	".pif": true, ".scr": true, ".vbs": true, ".js": true,
	".jar": true, ".ps1": true, ".sh": true, ".bash": true,
	".msi": true, ".dll": true, ".sys": true, ".html": true,
	".htm": true, ".svg": true,
}

// FileStorage defines the interface for media blob storage
type FileStorage interface {
	// Save stores content under a fresh unique name and returns its relative path
	Save(filename string, content io.Reader) (string, error)
	// Reserve allocates a fresh relative path for an external writer
	// and returns it together with its absolute location
	Reserve(ext string) (relPath string, absPath string, err error)
	Get(filePath string) (io.ReadCloser, error)
	// Path resolves a relative path to its absolute location
	Path(filePath string) (string, error)
	Delete(filePath string) error
}

// localStorage implements FileStorage using local filesystem
type localStorage struct {
	basePath string
}

// NewLocalStorage creates a new localStorage instance
func NewLocalStorage(basePath string) (FileStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &localStorage{basePath: basePath}, nil
}

// validatePath ensures path is within basePath (prevents traversal)
func (s *localStorage) validatePath(filePath string) (string, error) {
	cleanPath := filepath.Clean(filePath)

	if filepath.IsAbs(cleanPath) || filepath.VolumeName(cleanPath) != "" {
		return "", ErrPathTraversal
	}

	if strings.Contains(cleanPath, "..") || strings.Contains(filePath, ":\\") {
		return "", ErrPathTraversal
	}

	fullPath := filepath.Join(s.basePath, cleanPath)

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("invalid file path: %w", err)
	}

	absBase, err := filepath.Abs(s.basePath)
	if err != nil {
		return "", fmt.Errorf("invalid base path: %w", err)
	}

	// Security check: ensure file is within allowed directory
	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) &&
		absPath != absBase {
		return "", ErrPathTraversal
	}

	return absPath, nil
}

// SafeExt returns the lowercased extension of filename, or "" when it is blocked
func SafeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if BlockedExtensions[ext] || len(ext) > 10 {
		return ""
	}
	return ext
}

// allocate builds a unique relative path sharded by the first two characters
// of its uuid and makes sure the shard directory exists
func (s *localStorage) allocate(ext string) (string, string, error) {
	uniqueName := uuid.New().String() + ext

	subDir := uniqueName[:2]
	if err := os.MkdirAll(filepath.Join(s.basePath, subDir), 0755); err != nil {
		return "", "", fmt.Errorf("failed to create subdirectory: %w", err)
	}

	relPath := filepath.Join(subDir, uniqueName)
	return relPath, filepath.Join(s.basePath, relPath), nil
}

// Save stores a file and returns the relative path.
// Content is written to a temporary file and renamed into place.
func (s *localStorage) Save(filename string, content io.Reader) (string, error) {
	relPath, fullPath, err := s.allocate(SafeExt(filename))
	if err != nil {
		return "", err
	}

	tempPath := fullPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return "", fmt.Errorf("failed to create file: %w", err)
	}

	if _, err := io.Copy(file, content); err != nil {
		file.Close()
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to close file: %w", err)
	}

	if err := os.Rename(tempPath, fullPath); err != nil {
		os.Remove(tempPath)
		return "", fmt.Errorf("failed to move file into place: %w", err)
	}

	return relPath, nil
}

// Reserve allocates a unique path without creating the file
func (s *localStorage) Reserve(ext string) (string, string, error) {
	relPath, fullPath, err := s.allocate(SafeExt("x" + ext))
	if err != nil {
		return "", "", err
	}

	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", "", fmt.Errorf("invalid file path: %w", err)
	}
	return relPath, absPath, nil
}

// Get retrieves a file by its path
func (s *localStorage) Get(filePath string) (io.ReadCloser, error) {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	return file, nil
}

// Path resolves a stored file to its absolute location
func (s *localStorage) Path(filePath string) (string, error) {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return "", err
	}

	if _, err := os.Stat(fullPath); err != nil {
		if os.IsNotExist(err) {
			return "", ErrFileNotFound
		}
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	return fullPath, nil
}

// Delete removes a file by its path
func (s *localStorage) Delete(filePath string) error {
	fullPath, err := s.validatePath(filePath)
	if err != nil {
		return err
	}

	if err := os.Remove(fullPath); err != nil {
		if os.IsNotExist(err) {
			// File already doesn't exist, not an error
			return nil
		}
		return fmt.Errorf("failed to delete file: %w", err)
	}

	return nil
}
