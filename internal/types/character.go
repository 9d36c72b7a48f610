package types

import (
	"time"

	"github.com/google/uuid"
)

// Character is one tracked actor. Created lazily the first time an event for
// an unseen DID arrives; never deleted.
type Character struct {
	ID                    uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DID                   string    `gorm:"column:did;not null;uniqueIndex" json:"did"`
	Name                  string    `gorm:"column:name;not null" json:"name"`
	Level                 int       `gorm:"column:level;not null;default:1" json:"level"`
	Experience            int       `gorm:"column:experience;not null;default:0" json:"experience"`
	ExperienceToNextLevel int       `gorm:"column:experience_to_next_level;not null;default:0" json:"experience_to_next_level"`
	LevelsGained          int       `gorm:"column:levels_gained;not null;default:0" json:"levels_gained"`
	ProgressPercentage    float64   `gorm:"column:progress_percentage;not null;default:0" json:"progress_percentage"`
	CreatedAt             time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt             time.Time `gorm:"not null" json:"updated_at"`
}

func (Character) TableName() string { return "character" }

// CharacterAlignment holds the two axis accumulators and the derived label.
// Axis values never go below zero; the label is always recomputed from the
// axes, never written independently.
type CharacterAlignment struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DID            string    `gorm:"column:did;not null;uniqueIndex" json:"did"`
	Good           int       `gorm:"column:good;not null;default:0" json:"good"`
	MoralNeutral   int       `gorm:"column:moral_neutral;not null;default:0" json:"moral_neutral"`
	Evil           int       `gorm:"column:evil;not null;default:0" json:"evil"`
	Lawful         int       `gorm:"column:lawful;not null;default:0" json:"lawful"`
	EthicalNeutral int       `gorm:"column:ethical_neutral;not null;default:0" json:"ethical_neutral"`
	Chaotic        int       `gorm:"column:chaotic;not null;default:0" json:"chaotic"`
	Label          string    `gorm:"column:label;not null;default:'true neutral'" json:"label"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

func (CharacterAlignment) TableName() string { return "character_alignment" }
