package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	recorddomain "github.com/smallbiznis/datasync/internal/record/domain"
	"github.com/smallbiznis/datasync/pkg/db/pagination"
)

type listActivitiesQuery struct {
	pagination.Pagination
	Limit int `form:"limit" binding:"omitempty,gte=1,lte=250"`
}

func (s *Server) ListActivities(c *gin.Context) {
	var query listActivitiesQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if query.PageSize == 0 {
		query.PageSize = query.Limit
	}

	resp, err := s.reader.ListActivities(c.Request.Context(), recorddomain.ListActivitiesRequest{
		Pagination: pagination.Pagination{
			PageToken: strings.TrimSpace(query.PageToken),
			PageSize:  query.PageSize,
		},
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp.Activities, "page_info": resp.PageInfo})
}

func (s *Server) ListActivityPairs(c *gin.Context) {
	activityID := strings.TrimSpace(c.Param("id"))
	if activityID == "" {
		AbortWithError(c, newValidationError("id", "invalid_id", "invalid id"))
		return
	}

	pairs, err := s.reader.ListPairHistory(c.Request.Context(), activityID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pairs})
}
