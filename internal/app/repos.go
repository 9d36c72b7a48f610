package app

import (
	"gorm.io/gorm"

	"github.com/yungbote/feedquest-backend/internal/logger"
	"github.com/yungbote/feedquest-backend/internal/repos"
)

type Repos struct {
	Character       repos.CharacterRepo
	Alignment       repos.AlignmentRepo
	ExperienceEvent repos.ExperienceEventRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		Character:       repos.NewCharacterRepo(db, log),
		Alignment:       repos.NewAlignmentRepo(db, log),
		ExperienceEvent: repos.NewExperienceEventRepo(db, log),
	}
}
