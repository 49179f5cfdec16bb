package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// ErrAssetNotFound is returned by Store.Get when nothing is stored at the path.
var ErrAssetNotFound = errors.New("asset not found")

// Store defines the interface for saving, retrieving, and deleting media assets
type Store interface {
	// Save stores data from reader under the asset type's directory. relativeDirHint
	// adds further structure (e.g. the history id). returns the final relative path.
	Save(ctx context.Context, assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error)
	// Get retrieves a reader for an asset
	Get(ctx context.Context, relativePath string) (io.ReadCloser, AssetInfo, error)
	// Delete removes an asset. Deleting a missing asset is not an error.
	Delete(ctx context.Context, relativePath string) error
}

// LocalStorage implements the Store interface using the local filesystem
type LocalStorage struct {
	basePath        string               // absolute path to the MEDIA_STORAGE_PATH
	resolvedPathMap map[AssetType]string // maps AssetType to full absolute path
}

// NewLocalStorage creates a new local filesystem store
func NewLocalStorage(basePath string, subDirs map[AssetType]string) (*LocalStorage, error) {
	absBasePath, err := filepath.Abs(basePath)
	if err != nil {
		return nil, fmt.Errorf("invalid base storage path '%s': %w", basePath, err)
	}

	if err := os.MkdirAll(absBasePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base storage directory '%s': %w", absBasePath, err)
	}

	resolvedPaths := make(map[AssetType]string)
	for assetType, subDir := range subDirs {
		fullPath := filepath.Join(absBasePath, subDir)
		if !isWithin(absBasePath, fullPath) {
			return nil, fmt.Errorf("invalid subdirectory configuration: '%s' resolves outside base path '%s'", subDir, absBasePath)
		}
		resolvedPaths[assetType] = fullPath
	}

	log.Printf("media.store: Initialized LocalStorage at %s", absBasePath)
	return &LocalStorage{
		basePath:        absBasePath,
		resolvedPathMap: resolvedPaths,
	}, nil
}

// BasePath returns the absolute storage root.
func (ls *LocalStorage) BasePath() string {
	return ls.basePath
}

func (ls *LocalStorage) assetTypeDir(assetType AssetType) (string, error) {
	dirPath, ok := ls.resolvedPathMap[assetType]
	if !ok {
		return "", fmt.Errorf("asset type '%s' is not configured", assetType)
	}
	return dirPath, nil
}

// Save writes data to <asset dir>/<relativeDirHint>/<filename>.
func (ls *LocalStorage) Save(ctx context.Context, assetType AssetType, relativeDirHint string, filename string, data io.Reader) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if filename == "" {
		return "", fmt.Errorf("filename cannot be empty for LocalStorage.Save")
	}

	baseAssetDir, err := ls.assetTypeDir(assetType)
	if err != nil {
		return "", err
	}

	targetDir := baseAssetDir
	if relativeDirHint != "" {
		targetDir = filepath.Join(baseAssetDir, relativeDirHint)
		if !isWithin(baseAssetDir, targetDir) {
			return "", fmt.Errorf("invalid relative directory hint '%s'", relativeDirHint)
		}
	}
	if err := os.MkdirAll(targetDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory '%s': %w", targetDir, err)
	}

	fullSavePath := filepath.Join(targetDir, filename)
	if !isWithin(targetDir, fullSavePath) {
		return "", fmt.Errorf("invalid filename '%s'", filename)
	}

	outFile, err := os.Create(fullSavePath)
	if err != nil {
		return "", fmt.Errorf("failed to create destination file '%s': %w", fullSavePath, err)
	}

	if _, err = io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to write data to '%s': %w", fullSavePath, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(fullSavePath)
		return "", fmt.Errorf("failed to close '%s': %w", fullSavePath, err)
	}

	relativePath, err := filepath.Rel(ls.basePath, fullSavePath)
	if err != nil {
		return "", fmt.Errorf("internal error calculating relative path: %w", err)
	}

	log.Printf("media.store: Saved asset to %s", fullSavePath)
	return filepath.ToSlash(relativePath), nil
}

func (ls *LocalStorage) Get(ctx context.Context, relativePath string) (io.ReadCloser, AssetInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, AssetInfo{}, err
	}
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return nil, AssetInfo{}, err
	}

	file, err := os.Open(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, AssetInfo{}, fmt.Errorf("%w: '%s'", ErrAssetNotFound, relativePath)
		}
		return nil, AssetInfo{}, fmt.Errorf("failed to open asset '%s': %w", relativePath, err)
	}

	info, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, AssetInfo{}, fmt.Errorf("failed to stat asset '%s': %w", relativePath, err)
	}
	if info.IsDir() {
		file.Close()
		return nil, AssetInfo{}, fmt.Errorf("%w: '%s' is a directory", ErrAssetNotFound, relativePath)
	}

	return file, AssetInfo{
		Size:        info.Size(),
		ModTime:     info.ModTime(),
		ContentType: mime.TypeByExtension(filepath.Ext(fullPath)),
	}, nil
}

// Delete removes an asset file
func (ls *LocalStorage) Delete(ctx context.Context, relativePath string) error {
	fullPath, err := ls.GetFullPath(relativePath)
	if err != nil {
		return err
	}

	err = os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete asset '%s': %w", relativePath, err)
	}
	if err == nil {
		log.Printf("media.store: Deleted asset %s", fullPath)
	}
	return nil
}

// GetFullPath calculates the absolute path and performs security check
func (ls *LocalStorage) GetFullPath(relativePath string) (string, error) {
	fullPath := filepath.Join(ls.basePath, filepath.Clean("/"+relativePath))

	absFullPath, err := filepath.Abs(fullPath)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path for '%s': %w", relativePath, err)
	}

	if !isWithin(ls.basePath, absFullPath) || absFullPath == ls.basePath {
		return "", fmt.Errorf("invalid path: access denied for '%s'", relativePath)
	}

	return absFullPath, nil
}

func isWithin(base, target string) bool {
	rel, err := filepath.Rel(base, filepath.Clean(target))
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
