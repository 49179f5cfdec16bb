package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/camden-git/acnesense/detection"
	"github.com/camden-git/acnesense/media"
)

// OwnershipChecker reports detection.ErrNotFound when a history does not
// belong to the user.
type OwnershipChecker interface {
	CheckOwnership(ctx context.Context, userID, historyID uint) error
}

// AssetServer serves archived captures and thumbnails from the media store.
// Asset paths look like <subdir>/<history id>/<file>; only the owner of the
// history may read them. Must be mounted behind AuthMiddleware on a "/*" route.
func AssetServer(store media.Store, owners OwnershipChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user, ok := UserFromContext(r)
		if !ok {
			writeAuthRequired(w)
			return
		}

		relativePath := chi.URLParam(r, "*")
		historyID, ok := assetHistoryID(relativePath)
		if !ok {
			http.Error(w, "Invalid asset path", http.StatusBadRequest)
			return
		}

		if err := owners.CheckOwnership(r.Context(), user.ID, historyID); err != nil {
			if errors.Is(err, detection.ErrNotFound) {
				http.NotFound(w, r)
				return
			}
			log.Printf("assets: ownership check failed for %s: %v", relativePath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}

		rc, info, err := store.Get(r.Context(), relativePath)
		if err != nil {
			if errors.Is(err, media.ErrAssetNotFound) {
				http.NotFound(w, r)
				return
			}
			log.Printf("assets: error opening %s: %v", relativePath, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		defer rc.Close()

		// archived assets never change once written
		cacheDuration := 24 * time.Hour
		w.Header().Set("Cache-Control", fmt.Sprintf("private, max-age=%d", int(cacheDuration.Seconds())))
		if info.ContentType != "" {
			w.Header().Set("Content-Type", info.ContentType)
		}

		if rs, ok := rc.(io.ReadSeeker); ok {
			http.ServeContent(w, r, relativePath, info.ModTime, rs)
			return
		}
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		if _, err := io.Copy(w, rc); err != nil {
			log.Printf("assets: error streaming %s: %v", relativePath, err)
		}
	}
}

func assetHistoryID(relativePath string) (uint, bool) {
	if relativePath == "" || strings.Contains(relativePath, "..") {
		return 0, false
	}
	parts := strings.Split(strings.Trim(relativePath, "/"), "/")
	if len(parts) != 3 {
		return 0, false
	}
	id, err := strconv.ParseUint(parts[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}
