package http

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"

	"github.com/dummy7679/testcraft/internal/bulk"
	"github.com/dummy7679/testcraft/internal/quiz"
	"github.com/dummy7679/testcraft/internal/render"
	"github.com/dummy7679/testcraft/internal/storage"
)

// ImportTextHandler previews a bulk-text paste: it parses the text into
// questions and reports per-block diagnostics for everything that was
// dropped. Nothing is persisted; the author reviews and then saves through
// the normal test endpoints.
//
// Inline images (base64 by name) take precedence; names not supplied inline
// are resolved against previously uploaded assets. Either way, duplicate
// names are last-write-wins.
func ImportTextHandler(bs storage.BlobStore, rend render.Renderer) http.HandlerFunc {
	type in struct {
		Text   string            `json:"text"`
		Images map[string]string `json:"images,omitempty"` // name -> base64
	}
	type out struct {
		Questions   []quiz.Question      `json:"questions"`
		Diagnostics []bulk.Diagnostic    `json:"diagnostics"`
		RenderErrs  []render.RenderError `json:"render_errors,omitempty"`
	}
	return func(w http.ResponseWriter, r *http.Request) {
		var req in
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json", http.StatusBadRequest)
			return
		}
		images := map[string][]byte{}
		for _, key := range bulk.ImageKeys(req.Text) {
			if bs == nil {
				break
			}
			rc, err := bs.Get(imageKeyPath(key))
			if err != nil {
				continue // unresolvable keys are not an error
			}
			data, err := io.ReadAll(rc)
			rc.Close()
			if err == nil {
				images[key] = data
			}
		}
		for name, b64 := range req.Images {
			data, err := base64.StdEncoding.DecodeString(b64)
			if err != nil {
				http.Error(w, "image "+name+": bad base64", http.StatusBadRequest)
				return
			}
			images[name] = data
		}

		questions, diags := bulk.Parse(req.Text, images)

		// Surface renderer failures to the author without touching the
		// question data; the expression stays in the record as written.
		var renderErrs []render.RenderError
		if rend != nil {
			for _, q := range questions {
				for _, expr := range latexExprs(q) {
					if _, err := rend.Render(expr); err != nil {
						renderErrs = append(renderErrs, render.RenderError{Expr: expr, Msg: err.Error()})
					}
				}
			}
		}

		if questions == nil {
			questions = []quiz.Question{}
		}
		if diags == nil {
			diags = []bulk.Diagnostic{}
		}
		writeJSON(w, out{Questions: questions, Diagnostics: diags, RenderErrs: renderErrs})
	}
}

func latexExprs(q quiz.Question) []string {
	var out []string
	if q.Latex != "" {
		out = append(out, q.Latex)
	}
	for _, o := range q.Options {
		if o.Latex != "" {
			out = append(out, o.Latex)
		}
	}
	return out
}
