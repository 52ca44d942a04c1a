package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/visign/signaling/internal/auth"
	"github.com/visign/signaling/internal/config"
	"github.com/visign/signaling/internal/domain"
)

// devTokenHandler mints guest identity tokens so the static client can connect
// without the real auth service. Debug mode only. The guest's user id sticks
// to the browser session, so refreshing the page reconnects as the same user.
func devTokenHandler(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			DisplayName string `json:"display_name" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "display_name required"})
			return
		}

		sess := sessions.Default(c)
		userID, _ := sess.Get("guest_id").(string)
		if userID == "" {
			userID = uuid.NewString()
			sess.Set("guest_id", userID)
			_ = sess.Save()
		}

		identity, err := domain.NewIdentity(userID, req.DisplayName)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		token, err := auth.Issue(cfg.Secret, identity, 24*time.Hour)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "token issue failed"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "user_id": userID})
	}
}
