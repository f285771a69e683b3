package handlers

import (
	"github.com/fieldwave/promoter-backoffice/internal/models"
	"github.com/gin-gonic/gin"
)

// Context keys set by the promoter auth middleware.
const (
	ContextPromoter  = "promoter"
	ContextTokenHash = "tokenHash"
)

// GetPromoter returns the authenticated promoter for the request, if any.
func GetPromoter(c *gin.Context) *models.Promoter {
	value, ok := c.Get(ContextPromoter)
	if !ok {
		return nil
	}
	promoter, ok := value.(*models.Promoter)
	if !ok {
		return nil
	}
	return promoter
}

// promoterBody serializes a promoter for app responses.
func promoterBody(promoter *models.Promoter) gin.H {
	return gin.H{
		"id":          promoter.ID,
		"name":        promoter.Name,
		"username":    promoter.Username,
		"state":       promoter.State,
		"district":    promoter.District,
		"status":      promoter.Status,
		"app_version": promoter.AppVersion,
	}
}
