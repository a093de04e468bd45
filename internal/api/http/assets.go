package http

import (
	"io"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"

	"github.com/dummy7679/testcraft/internal/storage"
)

// imageKeyPath namespaces uploaded question images inside the blob store.
func imageKeyPath(name string) string {
	return "images/" + path.Base(name)
}

// MountAssets wires the image upload/download endpoints. Uploading a name
// that already exists overwrites it: last write wins, matching how the bulk
// parser resolves duplicate image names.
func MountAssets(r chi.Router, bs storage.BlobStore) {
	// POST /assets  multipart: file=<bytes>, name=<author-chosen key>
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, "file required", http.StatusBadRequest)
			return
		}
		defer f.Close()
		name := r.FormValue("name")
		if name == "" {
			name = hdr.Filename
		}
		if name == "" {
			http.Error(w, "name required", http.StatusBadRequest)
			return
		}
		key, err := bs.Put(imageKeyPath(name), f)
		if err != nil {
			http.Error(w, "store error: "+err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"key": key, "name": path.Base(name)})
	})

	// GET /assets/{name} streams the image back.
	r.Get("/{name}", func(w http.ResponseWriter, r *http.Request) {
		rc, err := bs.Get(imageKeyPath(chi.URLParam(r, "name")))
		if err != nil {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", "application/octet-stream")
		_, _ = io.Copy(w, rc)
	})
}
