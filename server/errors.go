package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smallnest/campusrag/rag"
	"github.com/smallnest/campusrag/store"
)

type errorDetail struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorBody(kind, message string) gin.H {
	return gin.H{"error": errorDetail{Kind: kind, Message: message}}
}

// StatusFor maps an error to its HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, rag.ErrInvalidArgument), errors.Is(err, store.ErrInvalidKey):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(c *gin.Context, err error) {
	status := StatusFor(err)
	kind := kindFor(status)
	message := err.Error()
	var re *rag.Error
	if errors.As(err, &re) {
		kind = string(re.Kind)
		if re.Message != "" {
			message = re.Message
		}
	}
	if status >= http.StatusInternalServerError {
		s.logger.Error("http.failed path=%s kind=%s err=%v", c.FullPath(), kind, err)
	}
	c.AbortWithStatusJSON(status, errorBody(kind, message))
}

func kindFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return string(rag.KindInvalidArgument)
	case http.StatusNotFound:
		return "NotFound"
	case http.StatusConflict:
		return "Conflict"
	default:
		return "InternalError"
	}
}
