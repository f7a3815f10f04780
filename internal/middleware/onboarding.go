package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/masedocs/mase-audit-api/internal/models"
)

type onboardingChecker interface {
	Completed(ctx context.Context, userID string) (bool, error)
}

// OnboardingFlag annotates authenticated responses with the onboarding gate
// state. It never blocks the request: the client owns the redirect, the API
// only reports the flag in the response meta.
func OnboardingFlag(checker onboardingChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claimsValue, ok := c.Get(ContextUserKey); ok {
			claims := claimsValue.(*models.JWTClaims)
			completed, err := checker.Completed(c.Request.Context(), claims.UserID)
			if err == nil {
				SetOnboardingRequired(c, !completed)
			}
		}
		c.Next()
	}
}
