package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallnest/campusrag/intent"
	"github.com/smallnest/campusrag/memory"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/rag/indexer"
	"github.com/smallnest/campusrag/store"
)

type answerRequest struct {
	rag.Query
	ConversationID string `json:"cid,omitempty"`
}

type answerResponse struct {
	*rag.AnswerResult
	EdIntentDetected     bool             `json:"ed_intent_detected"`
	EdIntent             *string          `json:"ed_intent"`
	MoodleIntentDetected bool             `json:"moodle_intent_detected"`
	MoodleIntent         *string          `json:"moodle_intent"`
	MoodleFile           *intent.FileInfo `json:"moodle_file"`
}

func newAnswerResponse(res *rag.AnswerResult, in intent.Intent) answerResponse {
	resp := answerResponse{AnswerResult: res}
	action := in.Action
	switch in.Kind {
	case intent.KindEd:
		resp.EdIntentDetected = true
		resp.EdIntent = &action
	case intent.KindMoodle:
		resp.MoodleIntentDetected = true
		resp.MoodleIntent = &action
		resp.MoodleFile = in.File
	}
	return resp
}

func (s *Server) handleAnswer(c *gin.Context) {
	var req answerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, rag.InvalidArgument("invalid request body"))
		return
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		s.writeError(c, rag.InvalidArgument("Missing 'question'"))
		return
	}

	ctx := c.Request.Context()
	in := intent.None()
	if s.router != nil {
		routed, reply, handled, err := s.router.Route(ctx, req.Question)
		if err != nil {
			s.writeError(c, err)
			return
		}
		in = routed
		if handled {
			s.logger.Info("answer.intent_handled intent=%s action=%s", in.Kind, in.Action)
			res := &rag.AnswerResult{
				Reply:      reply,
				Sources:    []rag.Source{},
				SourceType: in.Kind.String(),
			}
			c.JSON(http.StatusOK, newAnswerResponse(res, in))
			return
		}
	}

	q := req.Query
	if q.TopK <= 0 {
		q.TopK = s.topK
	}
	s.fillHistory(c, &q, req.ConversationID)

	res, err := s.answerer.Answer(ctx, q)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAnswerResponse(res, in))
}

// fillHistory loads the stored conversation when the request names one but
// carries no summary or transcript.
func (s *Server) fillHistory(c *gin.Context, q *rag.Query, cid string) {
	if s.messages == nil || q.UserID == "" || cid == "" {
		return
	}
	if q.Summary != "" && q.RecentTranscript != "" {
		return
	}
	key := store.ConversationKey{UserID: q.UserID, ConversationID: cid}
	recent, err := s.messages.Recent(c.Request.Context(), key, s.history)
	if err != nil {
		s.logger.Warn("answer.history_failed uid=%s cid=%s err=%v", key.UserID, key.ConversationID, err)
		return
	}
	if q.Summary == "" {
		q.Summary = memory.PriorSummary(recent, "")
	}
	if q.RecentTranscript == "" {
		q.RecentTranscript = Transcript(recent)
	}
}

// Transcript renders messages as "role: content" lines.
func Transcript(msgs []*store.Message) string {
	lines := make([]string, 0, len(msgs))
	for _, t := range memory.TurnsFromMessages(msgs) {
		lines = append(lines, t.Role+": "+t.Content)
	}
	return strings.Join(lines, "\n")
}

type createMessageRequest struct {
	ID      string `json:"id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (s *Server) handleCreateMessage(c *gin.Context) {
	var req createMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, rag.InvalidArgument("invalid request body"))
		return
	}
	if req.Role != store.RoleUser && req.Role != store.RoleAssistant {
		s.writeError(c, rag.InvalidArgument("role must be user or assistant"))
		return
	}
	if strings.TrimSpace(req.Content) == "" {
		s.writeError(c, rag.InvalidArgument("content must not be empty"))
		return
	}

	msg := &store.Message{
		ID:             req.ID,
		UserID:         c.Param("uid"),
		ConversationID: c.Param("cid"),
		Role:           req.Role,
		Content:        req.Content,
	}
	if err := s.messages.Append(c.Request.Context(), msg); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

func (s *Server) handleListMessages(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(c, rag.InvalidArgument("limit must be a non-negative integer"))
			return
		}
		limit = n
	}

	key := store.ConversationKey{UserID: c.Param("uid"), ConversationID: c.Param("cid")}
	msgs, err := s.messages.Recent(c.Request.Context(), key, limit)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

type indexRequest struct {
	Chunks []indexer.Chunk `json:"chunks"`
}

func (s *Server) handleIndex(c *gin.Context) {
	var req indexRequest
	if err := c.ShouldBindJSON(&req); err != nil || len(req.Chunks) == 0 {
		s.writeError(c, rag.InvalidArgument("Missing 'chunks'"))
		return
	}
	res, err := s.indexer.Index(c.Request.Context(), req.Chunks)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

type titleRequest struct {
	Question string `json:"question"`
}

func (s *Server) handleTitle(c *gin.Context) {
	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, rag.InvalidArgument("invalid request body"))
		return
	}
	title, err := s.titles.Generate(c.Request.Context(), req.Question)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"title": title})
}
