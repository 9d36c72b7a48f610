// Package leveling converts accumulated experience into level state using an
// arithmetic XP progression: reaching level 1 takes BaseExperience, every
// level after that takes ExperiencePerLevel more.
package leveling

// LevelCap is the maximum attainable level.
const LevelCap = 1000

// ExperiencePerLevel is the XP required for each level past the base.
const ExperiencePerLevel = 100

// BaseExperience is the XP required to reach level 1.
const BaseExperience = 50

// LevelState is the derived progression snapshot for a total XP value.
type LevelState struct {
	// Level is the new total level, clamped at LevelCap.
	Level int `json:"level"`
	// Experience is the total accumulated experience.
	Experience int `json:"experience"`
	// ExperienceToNextLevel is the XP still needed for the next level.
	// Zero at or above LevelCap.
	ExperienceToNextLevel int `json:"experience_to_next_level"`
	// LevelsGained is how many levels this single increment produced.
	// Never negative: losses show up only through Level itself.
	LevelsGained int `json:"levels_gained"`
	// ProgressPercentage is how far along [Level, Level+1) the total sits,
	// in 0.0..=1.0. Pinned to 1.0 at LevelCap.
	ProgressPercentage float64 `json:"progress_percentage"`
}

// XPForLevel returns the total XP required to reach level n.
func XPForLevel(n int) int {
	if n <= 1 {
		return BaseExperience
	}
	return BaseExperience + (n-1)*ExperiencePerLevel
}

// LevelFromXP computes the unclamped level for a total XP value. Anything
// below BaseExperience counts as level 1. Inverse of XPForLevel.
func LevelFromXP(xp int) int {
	if xp < BaseExperience {
		return 1
	}
	return 1 + (xp-BaseExperience)/ExperiencePerLevel
}

// ApplyExperienceDelta folds a signed XP delta into the current total and
// returns the derived level state. The caller owns any floor/clamp policy on
// the delta itself (deletion paths floor total experience before calling).
func ApplyExperienceDelta(currentXP, delta int) LevelState {
	newXP := currentXP + delta
	oldLevel := LevelFromXP(currentXP)
	newLevel := LevelFromXP(newXP)

	level := newLevel
	if level > LevelCap {
		level = LevelCap
	}

	var toNext int
	var progress float64
	if level >= LevelCap {
		toNext = 0
		progress = 1.0
	} else {
		// Below the level-1 threshold the actor is still working toward
		// level 1 itself, from zero.
		nextThreshold := XPForLevel(level + 1)
		currentThreshold := XPForLevel(level)
		if newXP < BaseExperience {
			nextThreshold = BaseExperience
			currentThreshold = 0
		}
		span := nextThreshold - currentThreshold
		if span < 1 {
			span = 1
		}
		into := newXP - currentThreshold
		if into < 0 {
			into = 0
		}
		progress = float64(into) / float64(span)
		toNext = nextThreshold - newXP
		if toNext < 0 {
			toNext = 0
		}
	}

	gained := newLevel - oldLevel
	if gained < 0 {
		gained = 0
	}

	return LevelState{
		Level:                 level,
		Experience:            newXP,
		ExperienceToNextLevel: toNext,
		LevelsGained:          gained,
		ProgressPercentage:    progress,
	}
}
