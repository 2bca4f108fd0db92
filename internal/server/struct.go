package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/prepai-go/internal/corpus"
	"github.com/54b3r/prepai-go/internal/feedback"
	"github.com/54b3r/prepai-go/internal/ingestion"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response. It must
	// cover a full feedback call.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on the
	// model-backed endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on POST /questions.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// AllowedOrigins is the CORS allow-list. "*" allows any origin. Empty
	// disables CORS headers entirely.
	AllowedOrigins []string
	// SessionTTL is the session cookie max-age. Defaults to 60s if zero.
	SessionTTL time.Duration
	// SecureCookie sets the Secure attribute on the session cookie.
	SecureCookie bool
	// MaxBodyBytes caps request bodies. Defaults to 1 MiB if zero.
	MaxBodyBytes int64
	// MetricsRegistry receives the server's metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// recommender serves questions. *recommend.Engine satisfies it; tests inject
// a fake.
type recommender interface {
	Recommend(ctx context.Context, sessionID, description string) (corpus.Match, bool, error)
	Similar(ctx context.Context, query string, k int) ([]corpus.Match, error)
	Question(ctx context.Context, id int64) (corpus.Question, error)
}

// scorer reviews answers. *feedback.Scorer satisfies it.
type scorer interface {
	Score(ctx context.Context, question, answer string) feedback.Feedback
}

// ingester stores new questions. *ingestion.Pipeline satisfies it.
type ingester interface {
	IngestOne(ctx context.Context, in ingestion.QuestionInput) (corpus.Question, error)
}

// Deps are the collaborators the handlers call.
type Deps struct {
	Recommender recommender
	Scorer      scorer
	// Ingester is optional; without it POST /questions is not registered.
	Ingester ingester
}

// Server is the HTTP server that exposes the recommendation engine, the
// feedback scorer and question ingestion.
type Server struct {
	// recommender picks questions for job descriptions.
	recommender recommender
	// scorer produces answer feedback.
	scorer scorer
	// ingester adds questions to the corpus. May be nil.
	ingester ingester
	// cfg holds the resolved server configuration.
	cfg *Config
	// handler is the fully wrapped root handler.
	handler http.Handler
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// limiter throttles the model-backed routes. Stopped when Start returns.
	limiter *rateLimiter
}

// parseJobRequest is the JSON body for POST /jobs/parse.
type parseJobRequest struct {
	// JobDescription is the free-text job posting.
	JobDescription string `json:"jobDescription"`
}

// matchResponse is one recommended question as rendered to clients.
type matchResponse struct {
	ID         int64   `json:"id"`
	Text       string  `json:"question_text"`
	Topic      string  `json:"topic"`
	Difficulty string  `json:"difficulty"`
	Distance   float64 `json:"distance"`
}

// parseJobResponse is the JSON response for POST /jobs/parse.
type parseJobResponse struct {
	RecommendedQuestion matchResponse `json:"recommendedQuestion"`
}

// submitAnswerRequest is the JSON body for POST /interview/submit-answer.
type submitAnswerRequest struct {
	// QuestionID identifies the question being answered.
	QuestionID int64 `json:"questionId"`
	// UserAnswer is the candidate's free-text answer.
	UserAnswer string `json:"userAnswer"`
}

// submitAnswerResponse is the JSON response for POST /interview/submit-answer.
type submitAnswerResponse struct {
	Feedback string `json:"feedback"`
}

// createQuestionRequest is the JSON body for POST /questions.
type createQuestionRequest struct {
	QuestionText string `json:"questionText"`
	Topic        string `json:"topic"`
	Difficulty   string `json:"difficulty"`
}

func toMatchResponse(m corpus.Match) matchResponse {
	return matchResponse{
		ID:         m.Question.ID,
		Text:       m.Question.Text,
		Topic:      m.Question.Topic,
		Difficulty: m.Question.Difficulty,
		Distance:   m.Distance,
	}
}
