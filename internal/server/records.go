package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) CountRecords(c *gin.Context) {
	count, err := s.reader.CountRecords(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

func (s *Server) GetRecord(c *gin.Context) {
	dhrID := strings.TrimSpace(c.Param("dhr_id"))
	if dhrID == "" {
		AbortWithError(c, newValidationError("dhr_id", "invalid_dhr_id", "invalid dhr_id"))
		return
	}

	rec, err := s.reader.FindRecord(c.Request.Context(), dhrID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if rec == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rec})
}
