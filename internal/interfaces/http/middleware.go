package http

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/timesheet-approval/pkg/utils"
)

// HeaderUserID carries the caller identity set by the trusted gateway in
// front of this service. Roles are always read from the user directory.
const HeaderUserID = "X-User-ID"

const actorIDKey = "actor_id"

// actorMiddleware rejects requests without a well-formed caller identity
func actorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if err := utils.ValidateUserID(id); err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, Response{
				Success: false,
				Error:   "missing or invalid " + HeaderUserID,
			})
			return
		}

		c.Set(actorIDKey, id)
		c.Next()
	}
}

func actorID(c *gin.Context) string {
	return c.GetString(actorIDKey)
}
