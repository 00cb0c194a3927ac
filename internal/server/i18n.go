package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"linkcore/internal/i18n"
)

type localesResponse struct {
	Current   string      `json:"current"`
	Chain     []string    `json:"chain"`
	Available []i18n.Meta `json:"available"`
}

func (s *Server) handleLocales(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	writeJSON(w, http.StatusOK, localesResponse{
		Current:   s.i18n.Locale(),
		Chain:     s.i18n.Chain(),
		Available: s.i18n.Tables(),
	})
}

type localeRequest struct {
	Locale string `json:"locale"`
}

func (s *Server) handleLocale(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, localeRequest{Locale: s.i18n.Locale()})
		return
	}

	var req localeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	locale, err := s.i18n.SetLocale(r.Context(), req.Locale)
	if errors.Is(err, i18n.ErrInvalidArgument) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("set locale", "error", err)
		writeError(w, http.StatusInternalServerError, "could not persist locale")
		return
	}
	writeJSON(w, http.StatusOK, localeRequest{Locale: locale})
}

type translateRequest struct {
	Key    string         `json:"key"`
	Locale string         `json:"locale,omitempty"`
	Args   map[string]any `json:"args,omitempty"`
}

type translateResponse struct {
	Key         string `json:"key"`
	Locale      string `json:"locale"`
	Text        string `json:"text"`
	Translated  bool   `json:"translated"`
	Explanation string `json:"error,omitempty"`
}

// handleTranslate accepts GET ?key=...&locale=...&arg.name=value or a POST
// body with the same fields. Misses return 200 with translated=false and the
// fallback text, matching what T would render.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet, http.MethodPost) {
		return
	}

	var req translateRequest
	if r.Method == http.MethodPost {
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 64<<10)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
	} else {
		q := r.URL.Query()
		req.Key = q.Get("key")
		req.Locale = q.Get("locale")
		for name, values := range q {
			if arg, ok := strings.CutPrefix(name, "arg."); ok && arg != "" && len(values) > 0 {
				if req.Args == nil {
					req.Args = make(map[string]any)
				}
				req.Args[arg] = values[0]
			}
		}
	}
	if req.Key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}

	locale := req.Locale
	if locale == "" {
		locale = s.i18n.Locale()
	}
	engine := s.i18n.ForLocale(locale)

	resp := translateResponse{Key: req.Key, Locale: locale}
	var args i18n.Args
	if manifest := engine.Manifest(); manifest != nil && len(req.Args) > 0 {
		coerced, err := manifest.Coerce(req.Key, req.Args)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		args = coerced
	} else if len(req.Args) > 0 {
		args = i18n.Args(req.Args)
	}

	text, err := engine.Lookup(req.Key, args)
	if err != nil {
		resp.Text = engine.Translate(req.Key, args)
		resp.Explanation = err.Error()
		writeJSON(w, http.StatusOK, resp)
		return
	}
	resp.Text = text
	resp.Translated = true
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	if !allow(w, r, http.MethodGet) {
		return
	}
	engine := s.i18n.ForLocale(s.i18n.Locale())
	if locale := r.URL.Query().Get("locale"); locale != "" {
		engine = s.i18n.ForLocale(locale)
	}
	manifest := engine.Manifest()
	if manifest == nil {
		writeError(w, http.StatusNotFound, "no translation table for locale")
		return
	}
	writeJSON(w, http.StatusOK, manifest)
}
