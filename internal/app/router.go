package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedquest-backend/internal/handlers"
	"github.com/yungbote/feedquest-backend/internal/server"
)

func wireRouter(serviceset Services) *gin.Engine {
	characterHandler := handlers.NewCharacterHandler(serviceset.Progression)
	return server.NewRouter(server.RouterConfig{
		CharacterHandler: characterHandler,
	})
}
