package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// handleCreditBalance returns the caller's credit balance.
func (s *Server) handleCreditBalance(c *gin.Context) {
	balance, err := s.ledger.Balance(c.Request.Context(), currentUser(c))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"balance":      balance.Balance,
		"reserved":     balance.Reserved,
		"available":    balance.Available(),
		"lifetimeUsed": balance.LifetimeUsed,
	})
}
