package worker

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog/log"

	"github.com/halcyonlabs/reverie/internal/analyzer"
	"github.com/halcyonlabs/reverie/internal/prompt"
	"github.com/halcyonlabs/reverie/internal/worker/sse"
	"github.com/halcyonlabs/reverie/pkg/models"
)

// maxUploadBytes caps a single analysis submission. Ten photos at phone
// camera sizes fit comfortably.
const maxUploadBytes = 64 << 20

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": s.version,
	})
}

func (s *Service) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         s.analyzer.Status(),
		"history_length": s.store.Len(),
		"profile":        s.store.Profile(),
		"uptime_seconds": int(time.Since(s.startTime).Seconds()),
		"version":        s.version,
	})
}

func (s *Service) handleHistory(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entries": s.store.History(),
	})
}

func (s *Service) handleProfile(w http.ResponseWriter, r *http.Request) {
	profile := s.store.Profile()
	if profile == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"profile": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"profile": profile})
}

// handleAnalyze accepts a multipart submission: a "text" field plus up to
// five files each under "journal_photos" and "space_photos". The call is
// synchronous; progress is also observable on /api/events.
func (s *Service) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart submission")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	text := r.FormValue("text")
	if len(text) > models.MaxEntryTextLen {
		writeError(w, http.StatusBadRequest,
			fmt.Sprintf("text exceeds %d characters", models.MaxEntryTextLen))
		return
	}

	journalPhotos, err := readPhotos(r, "journal_photos")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	spacePhotos, err := readPhotos(r, "space_photos")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.analyzer.Analyze(r.Context(), analyzer.Input{
		Text:          text,
		JournalPhotos: journalPhotos,
		SpacePhotos:   spacePhotos,
	})
	if err != nil {
		writeError(w, statusForError(err), analyzer.UserMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"result":  result,
		"profile": s.store.Profile(),
	})
}

func (s *Service) handleClearJournal(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Clear(); err != nil {
		log.Error().Err(err).Msg("Failed to clear journal")
		writeError(w, http.StatusInternalServerError, "failed to clear journal")
		return
	}
	s.analyzer.Reset()
	s.broadcaster.Broadcast(sse.Event{Type: "journal", Data: map[string]interface{}{
		"history_length": 0,
	}})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleEvents(w http.ResponseWriter, r *http.Request) {
	s.broadcaster.HandleSSE(w, r, sse.Event{Type: "status", Data: s.analyzer.Status()})
}

// readPhotos pulls one photo category out of the parsed form.
func readPhotos(r *http.Request, field string) ([]models.Photo, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	headers := r.MultipartForm.File[field]
	if len(headers) == 0 {
		return nil, nil
	}
	if len(headers) > models.MaxPhotosPerCategory {
		return nil, fmt.Errorf("at most %d %s allowed", models.MaxPhotosPerCategory, field)
	}

	photos := make([]models.Photo, 0, len(headers))
	for _, header := range headers {
		file, err := header.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", field)
		}
		data, err := io.ReadAll(file)
		file.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to read %s", field)
		}

		mime := header.Header.Get("Content-Type")
		if mime == "" || mime == "application/octet-stream" {
			mime = http.DetectContentType(data)
		}
		photos = append(photos, models.Photo{Data: data, MIME: mime})
	}
	return photos, nil
}

func statusForError(err error) int {
	switch {
	case errors.Is(err, analyzer.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, prompt.ErrNoContent):
		return http.StatusBadRequest
	case errors.Is(err, analyzer.ErrMissingAPIKey):
		return http.StatusInternalServerError
	default:
		return http.StatusBadGateway
	}
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Debug().Err(err).Msg("Failed to write response")
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
