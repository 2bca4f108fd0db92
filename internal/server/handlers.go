package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/54b3r/prepai-go/internal/apperror"
	"github.com/54b3r/prepai-go/internal/ingestion"
	"github.com/54b3r/prepai-go/internal/logging"
)

// maxSimilarK caps the k query parameter of GET /questions/recommend.
const maxSimilarK = 20

// handleParseJob handles POST /jobs/parse. It recommends the closest
// question to the job description that the caller's session has not seen
// among its last five recommendations.
func (s *Server) handleParseJob(w http.ResponseWriter, r *http.Request) {
	var req parseJobRequest
	if !s.decode(w, r, &req) {
		s.metrics.recommendationsTotal.WithLabelValues(string(apperror.CodeInvalidInput)).Inc()
		return
	}

	m, ok, err := s.recommender.Recommend(r.Context(), sessionFromContext(r.Context()), req.JobDescription)
	if err != nil {
		_, code := apperror.Classify(err)
		s.metrics.recommendationsTotal.WithLabelValues(string(code)).Inc()
		s.writeError(w, r, err)
		return
	}
	if !ok {
		s.metrics.recommendationsTotal.WithLabelValues("exhausted").Inc()
		writeJSON(w, r, http.StatusNotFound, apperror.Response{
			Message: "No questions available for this job description.",
			Code:    apperror.CodeNotFound,
		})
		return
	}

	s.metrics.recommendationsTotal.WithLabelValues("ok").Inc()
	writeJSON(w, r, http.StatusOK, parseJobResponse{RecommendedQuestion: toMatchResponse(m)})
}

// handleSubmitAnswer handles POST /interview/submit-answer. Model failures
// never surface as errors; the response carries a fallback message instead.
func (s *Server) handleSubmitAnswer(w http.ResponseWriter, r *http.Request) {
	var req submitAnswerRequest
	if !s.decode(w, r, &req) {
		s.metrics.feedbackTotal.WithLabelValues(string(apperror.CodeInvalidInput)).Inc()
		return
	}
	if req.QuestionID <= 0 || strings.TrimSpace(req.UserAnswer) == "" {
		s.metrics.feedbackTotal.WithLabelValues(string(apperror.CodeInvalidInput)).Inc()
		s.writeError(w, r, fmt.Errorf("questionId and userAnswer are required: %w", apperror.ErrInvalidInput))
		return
	}

	q, err := s.recommender.Question(r.Context(), req.QuestionID)
	if errors.Is(err, apperror.ErrNotFound) {
		s.metrics.feedbackTotal.WithLabelValues(string(apperror.CodeNotFound)).Inc()
		writeJSON(w, r, http.StatusNotFound, apperror.Response{Message: "Question not found", Code: apperror.CodeNotFound})
		return
	}
	if err != nil {
		_, code := apperror.Classify(err)
		s.metrics.feedbackTotal.WithLabelValues(string(code)).Inc()
		s.writeError(w, r, err)
		return
	}

	start := time.Now()
	fb := s.scorer.Score(r.Context(), q.Text, req.UserAnswer)
	outcome := "ok"
	if fb.Degraded {
		outcome = "degraded"
	}
	s.metrics.feedbackTotal.WithLabelValues(outcome).Inc()
	s.metrics.feedbackDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	writeJSON(w, r, http.StatusOK, submitAnswerResponse{Feedback: fb.Text})
}

// handleSimilar handles GET /questions/recommend?query=...&k=... and returns
// the closest questions without touching any session state.
func (s *Server) handleSimilar(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("query")
	k := 0
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > maxSimilarK {
			s.writeError(w, r, fmt.Errorf("k must be between 1 and %d: %w", maxSimilarK, apperror.ErrInvalidInput))
			return
		}
		k = n
	}

	matches, err := s.recommender.Similar(r.Context(), query, k)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]matchResponse, 0, len(matches))
	for _, m := range matches {
		out = append(out, toMatchResponse(m))
	}
	writeJSON(w, r, http.StatusOK, out)
}

// handleCreateQuestion handles POST /questions.
func (s *Server) handleCreateQuestion(w http.ResponseWriter, r *http.Request) {
	var req createQuestionRequest
	if !s.decode(w, r, &req) {
		s.metrics.ingestTotal.WithLabelValues(string(apperror.CodeInvalidInput)).Inc()
		return
	}

	q, err := s.ingester.IngestOne(r.Context(), ingestion.QuestionInput{
		Text:       req.QuestionText,
		Topic:      req.Topic,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		_, code := apperror.Classify(err)
		s.metrics.ingestTotal.WithLabelValues(string(code)).Inc()
		s.writeError(w, r, err)
		return
	}

	s.metrics.ingestTotal.WithLabelValues("ok").Inc()
	logging.FromContext(r.Context()).Info("question added", slog.Int64("question_id", q.ID))
	writeJSON(w, r, http.StatusCreated, map[string]any{
		"message":  "Question added successfully",
		"question": q,
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}

// decode reads a JSON body into dst, writing a 400 response and returning
// false on failure.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		msg := "invalid request body"
		if errors.As(err, &tooLarge) {
			msg = "request body too large"
		}
		writeJSON(w, r, http.StatusBadRequest, apperror.Response{Message: msg, Code: apperror.CodeInvalidInput})
		return false
	}
	return true
}

// writeError maps err onto its HTTP status and writes the client-facing
// payload. Server-side failures are logged at error level with the cause.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := apperror.NewResponse(err)
	log := logging.FromContext(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", slog.Int("status", status), slog.Any("error", err))
	} else {
		log.Warn("request rejected", slog.Int("status", status), slog.Any("error", err))
	}
	writeJSON(w, r, status, resp)
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context()).Error("response encode error", slog.Any("error", err))
	}
}
