package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"autograder/internal/db"
	"autograder/internal/rubric"
	"autograder/internal/schemas"
)

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReportArchive is satisfied by *storage.Client.
type ReportArchive interface {
	GetReport(ctx context.Context, ref string) ([]byte, error)
}

// ReportCache is satisfied by *cache.Reports.
type ReportCache interface {
	Get(ctx context.Context, id string) ([]byte, bool, error)
	Set(ctx context.Context, id string, report []byte) error
	Delete(ctx context.Context, id string) error
}

// Server holds the API dependencies. Archive and Cache are optional.
type Server struct {
	Store    *db.Store
	Queue    Enqueuer
	Archive  ReportArchive
	Cache    ReportCache
	Log      *zap.Logger
	APIToken string

	CORSOrigins     []string // empty disables CORS
	SubmitRatePerIP int      // submissions per minute per IP; 0 disables the limit
}

// gradeTimeout bounds one grading task: lint plus tests plus slack. A row
// running for longer than this is treated as abandoned by regrade.
const gradeTimeout = 5 * time.Minute

func NewServer(addr string, s *Server) *http.Server {
	return &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
}

func (s *Server) Handler() http.Handler {
	if s.Log == nil {
		s.Log = zap.NewNop()
	}
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, RequestLogger(s.Log), m.Recoverer)
	if len(s.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.CORSOrigins,
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			ExposedHeaders: []string{"Content-Length"},
			MaxAge:         300,
		}))
	}

	// API-token protected
	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.APIToken))
		r.With(s.submitLimit()).Post("/submissions", s.submit)
		r.Get("/submissions", s.listSubmissions)
		r.Get("/submissions/{id}", s.getSubmission)
		r.Get("/submissions/{id}/report", s.getReport)
		r.Post("/submissions/{id}/regrade", s.regrade)
	})

	r.Get("/variants", s.listVariants)
	r.Get("/variants/{id}", s.getVariant)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := s.Store.DB.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return r
}

func (s *Server) submitLimit() func(http.Handler) http.Handler {
	if s.SubmitRatePerIP <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return RateLimitByIP(s.SubmitRatePerIP)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, schemas.ErrorResponse{Error: msg})
}

func (s *Server) submit(w http.ResponseWriter, r *http.Request) {
	var req schemas.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	req.SubmissionDir = strings.TrimSpace(req.SubmissionDir)
	if req.SubmissionDir == "" {
		writeErr(w, http.StatusBadRequest, "submission_dir is required")
		return
	}
	if !rubric.ValidVariant(req.Variant) {
		writeErr(w, http.StatusBadRequest, "variant must be between 1 and 10")
		return
	}

	sub, err := s.Store.Create(r.Context(), req.SubmissionDir, req.Variant)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := s.enqueue(r.Context(), sub.ID); err != nil {
		_ = s.Store.MarkFailed(r.Context(), sub.ID, "enqueue: "+err.Error())
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.Log.Info("submission queued",
		zap.String("submission_id", sub.ID),
		zap.String("dir", sub.SubmissionDir),
		zap.Int("variant", sub.Variant))
	writeJSON(w, http.StatusAccepted, schemas.SubmitResponse{SubmissionID: sub.ID, Status: sub.Status})
}

func (s *Server) enqueue(ctx context.Context, id string) error {
	payload, err := json.Marshal(schemas.GradeTaskPayload{SubmissionID: id})
	if err != nil {
		return err
	}
	task := asynq.NewTask(schemas.GradeTaskType, payload)
	_, err = s.Queue.EnqueueContext(ctx, task, asynq.MaxRetry(0), asynq.Timeout(gradeTimeout))
	return err
}

func (s *Server) regrade(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := s.Store.Requeue(r.Context(), id, gradeTimeout); err != nil {
		switch {
		case errors.Is(err, db.ErrNotFound):
			writeErr(w, http.StatusNotFound, "not found")
		case errors.Is(err, db.ErrNotQueued):
			writeErr(w, http.StatusConflict, "submission is still being graded")
		default:
			writeErr(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	if s.Cache != nil {
		if err := s.Cache.Delete(r.Context(), id); err != nil {
			s.Log.Warn("drop cached report", zap.String("submission_id", id), zap.Error(err))
		}
	}
	if err := s.enqueue(r.Context(), id); err != nil {
		_ = s.Store.MarkFailed(r.Context(), id, "enqueue: "+err.Error())
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.SubmitResponse{SubmissionID: id, Status: db.StatusQueued})
}

func (s *Server) listSubmissions(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	subs, err := s.Store.List(r.Context(), limit)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]schemas.SubmissionOut, 0, len(subs))
	for i := range subs {
		o := toOut(&subs[i])
		o.Report = nil
		out = append(out, o)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getSubmission(w http.ResponseWriter, r *http.Request) {
	sub, err := s.Store.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, toOut(sub))
}

// getReport serves the report from the cache, then the DB row, then the archive.
func (s *Server) getReport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	if s.Cache != nil {
		b, ok, err := s.Cache.Get(ctx, id)
		if err != nil {
			s.Log.Warn("report cache get", zap.String("submission_id", id), zap.Error(err))
		} else if ok {
			writeRaw(w, b)
			return
		}
	}

	sub, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeErr(w, http.StatusNotFound, "not found")
			return
		}
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	if sub.Status != db.StatusGraded {
		writeErr(w, http.StatusNotFound, "report not ready (status "+sub.Status+")")
		return
	}

	report := sub.Report
	if len(report) == 0 && sub.ReportRef.Valid && s.Archive != nil {
		report, err = s.Archive.GetReport(ctx, sub.ReportRef.String)
		if err != nil {
			writeErr(w, http.StatusBadGateway, err.Error())
			return
		}
	}
	if len(report) == 0 {
		writeErr(w, http.StatusNotFound, "report not stored")
		return
	}
	if s.Cache != nil {
		if err := s.Cache.Set(ctx, id, report); err != nil {
			s.Log.Warn("report cache set", zap.String("submission_id", id), zap.Error(err))
		}
	}
	writeRaw(w, report)
}

func writeRaw(w http.ResponseWriter, b []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

func (s *Server) listVariants(w http.ResponseWriter, r *http.Request) {
	out := make([]rubric.VariantConfig, 0, rubric.MaxVariant)
	for _, id := range rubric.Variants() {
		out = append(out, rubric.Get(id))
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"variants":   out,
		"categories": rubric.Categories(),
		"readme":     rubric.Readme(),
	})
}

func (s *Server) getVariant(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeErr(w, http.StatusBadRequest, "variant must be an integer")
		return
	}
	cfg, ok := rubric.Lookup(id)
	if !ok {
		writeErr(w, http.StatusNotFound, "unknown variant")
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func toOut(sub *db.Submission) schemas.SubmissionOut {
	out := schemas.SubmissionOut{
		SubmissionID:  sub.ID,
		SubmissionDir: sub.SubmissionDir,
		Variant:       sub.Variant,
		Status:        sub.Status,
		CreatedAt:     sub.CreatedAt,
		UpdatedAt:     sub.UpdatedAt,
	}
	if sub.OverallScore.Valid {
		score := sub.OverallScore.Float64
		out.OverallScore = &score
	}
	if len(sub.Report) > 0 {
		out.Report = json.RawMessage(sub.Report)
	}
	out.ReportRef = sub.ReportRef.String
	out.Error = sub.Error.String
	return out
}
