package handlers

import (
	"net/http"
	"strings"

	"github.com/mealmates/backend/internal/logging"
)

// LabelHandler serves localized UI label texts.
type LabelHandler struct {
	Labels LabelCatalog
}

// List handles GET /api/v1/labels. The language comes from the lang query
// parameter, falling back to the Accept-Language header.
func (h LabelHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	ctx := r.Context()
	if h.Labels == nil {
		logging.FromContext(ctx).Error("label catalog unavailable")
		respondJSON(ctx, w, http.StatusInternalServerError, map[string]string{"error": "label service unavailable"})
		return
	}

	language := requestLanguage(r)
	texts, err := h.Labels.Lookup(ctx, language)
	if err != nil {
		respondError(ctx, w, err)
		return
	}

	respondJSON(ctx, w, http.StatusOK, labelsResponse{Language: language, Labels: texts})
}

func requestLanguage(r *http.Request) string {
	language := r.URL.Query().Get("lang")
	if language == "" {
		language = r.Header.Get("Accept-Language")
	}
	if len(language) >= 2 && strings.EqualFold(language[:2], "de") {
		return "DE"
	}
	return "EN"
}

type labelsResponse struct {
	Language string            `json:"language"`
	Labels   map[string]string `json:"labels"`
}
