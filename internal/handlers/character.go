package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedquest-backend/internal/services"
)

type CharacterHandler struct {
	progressionService services.ProgressionService
}

func NewCharacterHandler(progressionService services.ProgressionService) *CharacterHandler {
	return &CharacterHandler{progressionService: progressionService}
}

// Find returns the character for a DID, bootstrapping it on first sight via
// the same resolve-or-create path the dispatcher uses.
func (ch *CharacterHandler) Find(c *gin.Context) {
	did := strings.TrimSpace(c.Param("did"))
	if did == "" || !strings.HasPrefix(did, "did:") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid did"})
		return
	}

	character, err := ch.progressionService.ResolveOrCreate(c.Request.Context(), did)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	al, err := ch.progressionService.GetAlignment(c.Request.Context(), did)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := gin.H{"character": character}
	if al != nil {
		resp["alignment"] = al
	}
	c.JSON(http.StatusOK, resp)
}
