// Package http implements the REST API for Questhall Progress Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/questhall/questhall-progress-hub/internal/application/command"
	"github.com/questhall/questhall-progress-hub/internal/application/query"
	"github.com/questhall/questhall-progress-hub/internal/domain/lesson"
	"github.com/questhall/questhall-progress-hub/internal/domain/shared"
	"github.com/questhall/questhall-progress-hub/pkg/logger"
)

// maxBodyBytes limits the size of accepted request bodies.
const maxBodyBytes = 1 << 20 // 1 MB

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Questhall Progress Hub API",
		"version":     "v1",
		"description": "Progress rollups, reward claims and lesson XP for Questhall",
		"endpoints": map[string]string{
			"health":           "/health",
			"session_progress": "/api/v1/learners/{id}/sessions/{sessionId}/progress",
			"claim_reward":     "/api/v1/learners/{id}/sessions/{sessionId}/claim",
			"create_lesson":    "/api/v1/lessons",
			"save_lesson":      "/api/v1/lessons/{id}/records",
			"class_xp_rate":    "/api/v1/courses/{id}/xp-rate",
			"reconciliation":   "/api/v1/ops/reconciliation",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS READ HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetSessionProgress handles GET /api/v1/learners/{id}/sessions/{sessionId}/progress
func (s *Server) handleGetSessionProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetSessionProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Session progress handler not configured")
		return
	}

	q := query.GetSessionProgressQuery{
		LearnerID: r.PathValue("id"),
		SessionID: r.PathValue("sessionId"),
		SkipCache: getQueryParamBool(r, "fresh"),
	}

	result, err := s.deps.GetSessionProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeAppError(w, r, err, "failed to get session progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetUnitProgress handles GET /api/v1/learners/{id}/units/{unitId}/progress
func (s *Server) handleGetUnitProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetUnitProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Unit progress handler not configured")
		return
	}

	q := query.GetUnitProgressQuery{
		LearnerID: r.PathValue("id"),
		UnitID:    r.PathValue("unitId"),
	}

	result, err := s.deps.GetUnitProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeAppError(w, r, err, "failed to get unit progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetCourseProgress handles GET /api/v1/learners/{id}/courses/{courseId}/progress
func (s *Server) handleGetCourseProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetCourseProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course progress handler not configured")
		return
	}

	q := query.GetCourseProgressQuery{
		LearnerID: r.PathValue("id"),
		CourseID:  r.PathValue("courseId"),
	}

	result, err := s.deps.GetCourseProgressHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeAppError(w, r, err, "failed to get course progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRESS & REWARD WRITE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// refreshProgressResponse is the JSON shape for a refresh result.
type refreshProgressResponse struct {
	SessionID      string `json:"session_id"`
	Percentage     int    `json:"percentage"`
	XPEarned       int    `json:"xp_earned"`
	Status         string `json:"status"`
	NewlyCompleted bool   `json:"newly_completed"`
}

// handleRefreshProgress handles POST /api/v1/learners/{id}/sessions/{sessionId}/refresh
func (s *Server) handleRefreshProgress(w http.ResponseWriter, r *http.Request) {
	if s.deps.RefreshProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Refresh handler not configured")
		return
	}

	cmd := command.RefreshProgressCommand{
		LearnerID:     r.PathValue("id"),
		SessionID:     r.PathValue("sessionId"),
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.RefreshProgressHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeAppError(w, r, err, "failed to refresh progress")
		return
	}

	writeJSON(w, http.StatusOK, refreshProgressResponse{
		SessionID:      result.Snapshot.SessionID,
		Percentage:     result.Snapshot.Percentage,
		XPEarned:       result.Snapshot.XPEarned,
		Status:         string(result.Snapshot.Status),
		NewlyCompleted: result.NewlyCompleted,
	})
}

// claimRewardRequest is the JSON body of a claim request.
type claimRewardRequest struct {
	// PickedCardIndex - which of the three face-down cards the learner tapped.
	PickedCardIndex int `json:"picked_card_index"`
}

// rewardCardResponse is one card of the revealed deck.
type rewardCardResponse struct {
	Kind   string `json:"kind"`
	Amount int    `json:"amount"`
	Picked bool   `json:"picked"`
}

// claimRewardResponse is the JSON shape for a successful claim.
type claimRewardResponse struct {
	LearnerID string               `json:"learner_id"`
	SessionID string               `json:"session_id"`
	XPAwarded int                  `json:"xp_awarded"`
	NewTotal  int                  `json:"new_total"`
	Deck      []rewardCardResponse `json:"deck"`
	ClaimedAt time.Time            `json:"claimed_at"`
}

// handleClaimReward handles POST /api/v1/learners/{id}/sessions/{sessionId}/claim
func (s *Server) handleClaimReward(w http.ResponseWriter, r *http.Request) {
	if s.deps.ClaimRewardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Claim handler not configured")
		return
	}

	var req claimRewardRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	cmd := command.ClaimRewardCommand{
		LearnerID:       r.PathValue("id"),
		SessionID:       r.PathValue("sessionId"),
		PickedCardIndex: req.PickedCardIndex,
		CorrelationID:   getRequestID(r.Context()),
	}

	result, err := s.deps.ClaimRewardHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeAppError(w, r, err, "failed to claim reward")
		return
	}

	deck := make([]rewardCardResponse, 0, len(result.Deck))
	for i, card := range result.Deck {
		deck = append(deck, rewardCardResponse{
			Kind:   string(card.Kind),
			Amount: card.Amount,
			Picked: i == cmd.PickedCardIndex,
		})
	}

	writeJSON(w, http.StatusOK, claimRewardResponse{
		LearnerID: result.LearnerID,
		SessionID: result.SessionID,
		XPAwarded: result.XPAwarded,
		NewTotal:  result.NewTotal,
		Deck:      deck,
		ClaimedAt: result.ClaimedAt,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// LESSON HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// createLessonRequest is the JSON body of a lesson create.
type createLessonRequest struct {
	LessonInfoID      string  `json:"lesson_info_id,omitempty"`
	CourseID          string  `json:"course_id"`
	SessionDate       string  `json:"session_date"`
	XPBonusMultiplier float64 `json:"xp_bonus_multiplier,omitempty"`
	Topic             string  `json:"topic,omitempty"`
}

// createLessonResponse is the JSON shape for a created lesson.
type createLessonResponse struct {
	LessonInfoID      string    `json:"lesson_info_id"`
	CourseID          string    `json:"course_id"`
	SessionDate       time.Time `json:"session_date"`
	XPBonusMultiplier float64   `json:"xp_bonus_multiplier"`
	Topic             string    `json:"topic,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// handleCreateLesson handles POST /api/v1/lessons
func (s *Server) handleCreateLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.CreateLessonHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lesson handler not configured")
		return
	}

	var req createLessonRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	sessionDate, err := s.parseLessonDate(req.SessionDate)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "session_date must be YYYY-MM-DD or RFC 3339")
		return
	}

	cmd := command.CreateLessonCommand{
		LessonInfoID:      req.LessonInfoID,
		CourseID:          req.CourseID,
		SessionDate:       sessionDate,
		XPBonusMultiplier: req.XPBonusMultiplier,
		Topic:             req.Topic,
		CorrelationID:     getRequestID(r.Context()),
	}

	result, err := s.deps.CreateLessonHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeAppError(w, r, err, "failed to create lesson")
		return
	}

	writeJSON(w, http.StatusCreated, createLessonResponse{
		LessonInfoID:      result.Info.ID,
		CourseID:          result.Info.CourseID,
		SessionDate:       result.Info.SessionDate,
		XPBonusMultiplier: result.Info.XPBonusMultiplier,
		Topic:             result.Info.Topic,
		CreatedAt:         result.Info.CreatedAt,
	})
}

// parseLessonDate accepts a date-only value in the configured timezone or a
// full RFC 3339 timestamp.
func (s *Server) parseLessonDate(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}

	loc := s.deps.Location
	if loc == nil {
		loc = time.UTC
	}

	if d, err := time.ParseInLocation("2006-01-02", raw, loc); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// lessonRecordRequest is one learner row of a lesson save request.
type lessonRecordRequest struct {
	LearnerID   string `json:"learner_id"`
	Attendance  string `json:"attendance"`
	Performance string `json:"performance,omitempty"`
	Homework    string `json:"homework,omitempty"`
	StarFlag    bool   `json:"star_flag,omitempty"`
	Notes       string `json:"notes,omitempty"`
}

// saveLessonRequest is the JSON body of a lesson save.
type saveLessonRequest struct {
	Records []lessonRecordRequest `json:"records"`
}

// creditRowResponse is the per-learner outcome of a lesson save.
type creditRowResponse struct {
	LearnerID string `json:"learner_id"`
	Delta     int    `json:"delta"`
	NewTotal  int    `json:"new_total,omitempty"`
	Error     string `json:"error,omitempty"`
}

// saveLessonResponse is the JSON shape for a lesson save result.
type saveLessonResponse struct {
	LessonInfoID  string              `json:"lesson_info_id"`
	RecordsSaved  int                 `json:"records_saved"`
	CreditedCount int                 `json:"credited_count"`
	FailedCount   int                 `json:"failed_count"`
	Credits       []creditRowResponse `json:"credits"`
	SavedAt       time.Time           `json:"saved_at"`
}

// handleSaveLesson handles POST /api/v1/lessons/{id}/records
func (s *Server) handleSaveLesson(w http.ResponseWriter, r *http.Request) {
	if s.deps.SaveLessonHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Lesson handler not configured")
		return
	}

	var req saveLessonRequest
	if err := decodeBody(r, &req); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload")
		return
	}

	records := make([]lesson.Record, 0, len(req.Records))
	for _, rec := range req.Records {
		records = append(records, lesson.Record{
			LearnerID:   rec.LearnerID,
			Attendance:  lesson.AttendanceStatus(rec.Attendance),
			Performance: lesson.Rating(rec.Performance),
			Homework:    lesson.Rating(rec.Homework),
			StarFlag:    rec.StarFlag,
			Notes:       rec.Notes,
		})
	}

	cmd := command.SaveLessonCommand{
		LessonInfoID:  r.PathValue("id"),
		Records:       records,
		CorrelationID: getRequestID(r.Context()),
	}

	result, err := s.deps.SaveLessonHandler.Handle(r.Context(), cmd)
	if err != nil {
		s.writeAppError(w, r, err, "failed to save lesson")
		return
	}

	credits := make([]creditRowResponse, 0, len(result.Credits))
	for _, c := range result.Credits {
		row := creditRowResponse{
			LearnerID: c.LearnerID,
			Delta:     c.Delta,
			NewTotal:  c.NewTotal,
		}
		if c.Err != nil {
			row.Error = c.Err.Error()
			row.NewTotal = 0
		}
		credits = append(credits, row)
	}

	writeJSON(w, http.StatusOK, saveLessonResponse{
		LessonInfoID:  result.LessonInfoID,
		RecordsSaved:  result.RecordsSaved,
		CreditedCount: result.CreditedCount(),
		FailedCount:   result.FailedCount(),
		Credits:       credits,
		SavedAt:       result.SavedAt,
	})
}

// handleGetClassXPRate handles GET /api/v1/courses/{id}/xp-rate
func (s *Server) handleGetClassXPRate(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetClassXPRateHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Class rate handler not configured")
		return
	}

	q := query.GetClassXPRateQuery{
		CourseID: r.PathValue("id"),
	}

	var err error
	if q.From, err = parseTimeParam(r, "from"); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "from must be an RFC 3339 timestamp")
		return
	}
	if q.To, err = parseTimeParam(r, "to"); err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "to must be an RFC 3339 timestamp")
		return
	}

	result, err := s.deps.GetClassXPRateHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeAppError(w, r, err, "failed to get class xp rate")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// OPERATIONS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetReconciliation handles GET /api/v1/ops/reconciliation
func (s *Server) handleGetReconciliation(w http.ResponseWriter, r *http.Request) {
	if s.deps.GetReconciliationHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Reconciliation handler not configured")
		return
	}

	q := query.GetReconciliationReportQuery{}
	if raw := getQueryParam(r, "older_than", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "older_than must be a duration like 5m or 1h")
			return
		}
		q.OlderThan = d
	}

	result, err := s.deps.GetReconciliationHandler.Handle(r.Context(), q)
	if err != nil {
		s.writeAppError(w, r, err, "failed to build reconciliation report")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// ERROR MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// writeAppError maps application errors to HTTP status codes. Business
// outcomes (already claimed, not eligible) are client errors; everything
// unrecognized is a 500.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error, logMsg string) {
	switch {
	case errors.Is(err, shared.ErrAlreadyProcessed):
		writeJSONError(w, http.StatusConflict, "already_claimed", "Reward was already claimed for this session")
	case errors.Is(err, shared.ErrNotEligibleState):
		writeJSONError(w, http.StatusUnprocessableEntity, "not_eligible", "Session is not complete with the required quality")
	case shared.IsAlreadyExists(err):
		writeJSONError(w, http.StatusConflict, "already_exists", "Entity with this identifier already exists")
	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Requested entity was not found")
	case shared.IsValidation(err):
		writeJSONError(w, http.StatusBadRequest, "invalid_request", err.Error())
	default:
		s.logger.Error(logMsg,
			logger.Err(err),
			logger.String("path", r.URL.Path),
			logger.String("request_id", getRequestID(r.Context())),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
	}
}

// decodeBody decodes a JSON request body with a size limit. An empty body
// decodes as the zero value.
func decodeBody(r *http.Request, dest interface{}) error {
	defer r.Body.Close()

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return err
	}
	if len(body) == 0 {
		return nil
	}

	return json.Unmarshal(body, dest)
}

// parseTimeParam parses an optional RFC 3339 query parameter.
func parseTimeParam(r *http.Request, key string) (time.Time, error) {
	raw := getQueryParam(r, key, "")
	if raw == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, raw)
}
