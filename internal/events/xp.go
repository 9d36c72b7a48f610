package events

// Flat awards and bonuses for the per-kind XP policy.
const (
	likeXP   = 10
	repostXP = 10

	imageBonus   = 100
	altTextBonus = 50
)

// Fallback XP used when reversing ledger rows that predate XP tracking.
const (
	DeleteFallbackLikeXP   = 15
	DeleteFallbackRepostXP = 5
)

// CalculateXP computes the experience awarded for one classified event.
// Posts earn their text length plus media bonuses; likes and reposts are
// flat. Unknown kinds earn nothing.
func CalculateXP(c Classified) int {
	switch c.Kind {
	case KindPost:
		xp := len(c.Text)
		if c.HasImage {
			xp += imageBonus
			if c.ImageHasAltText {
				xp += altTextBonus
			}
		}
		return xp
	case KindLike:
		return likeXP
	case KindRepost:
		// TODO: quote reposts with media could earn a bonus once the
		// classifier extracts repost subjects.
		return repostXP
	default:
		return 0
	}
}
