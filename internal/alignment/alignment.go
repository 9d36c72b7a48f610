// Package alignment folds text-quality signals into two independent axis
// accumulators (moral, ethical) and derives the 9-way alignment label from
// them. All transitions clamp axis scores at zero.
package alignment

import "math"

// Polarity of a sentiment reading.
type Polarity string

const (
	Positive Polarity = "positive"
	Negative Polarity = "negative"
)

// Sentiment is the narrow contract consumed from the sentiment provider.
type Sentiment struct {
	Polarity Polarity
	Score    float64 // 0..1
}

// Axes holds the six axis accumulators.
type Axes struct {
	Good           int
	MoralNeutral   int
	Evil           int
	Lawful         int
	EthicalNeutral int
	Chaotic        int
}

// ApplySentiment scores the moral axis from one sentiment reading.
// Positive text feeds good and erodes evil; negative is the mirror. Strong
// readings (score > 0.7) also erode moral neutrality.
func (a *Axes) ApplySentiment(s Sentiment) {
	points := int(math.Round(s.Score * 100))
	switch s.Polarity {
	case Positive:
		a.Good += points
		a.Evil = clampZero(a.Evil - points/4)
		if s.Score > 0.7 {
			a.MoralNeutral = clampZero(a.MoralNeutral - points/6)
		}
	case Negative:
		a.Evil += points
		a.Good = clampZero(a.Good - points/4)
		if s.Score > 0.7 {
			a.MoralNeutral = clampZero(a.MoralNeutral - points/6)
		}
	}
}

// ApplySpelling scores the ethical axis from a spelling-mistake count.
// Few mistakes read as lawful; the bucket thresholds get harsher as the
// count grows.
func (a *Axes) ApplySpelling(mistakes int) {
	switch {
	case mistakes <= 6:
		const points = 15
		a.Lawful += points
		a.Chaotic = clampZero(a.Chaotic - points/4)
	case mistakes <= 9:
		const points = 25
		a.Chaotic += points
		a.Lawful = clampZero(a.Lawful - points/3)
		a.EthicalNeutral = clampZero(a.EthicalNeutral - points/6)
	default:
		const points = 40
		a.Chaotic += points
		a.Lawful = clampZero(a.Lawful - points/2)
		a.EthicalNeutral = clampZero(a.EthicalNeutral - points/4)
	}
}

// Label derives the discrete alignment from the current axis scores.
// A leaning only counts when it strictly exceeds both alternatives; every
// tie resolves to neutral.
func (a Axes) Label() string {
	var ethical string
	switch {
	case a.Lawful > a.Chaotic && a.Lawful > a.EthicalNeutral:
		ethical = "lawful"
	case a.Chaotic > a.Lawful && a.Chaotic > a.EthicalNeutral:
		ethical = "chaotic"
	default:
		ethical = "neutral"
	}

	var moral string
	switch {
	case a.Good > a.Evil && a.Good > a.MoralNeutral:
		moral = "good"
	case a.Evil > a.Good && a.Evil > a.MoralNeutral:
		moral = "evil"
	default:
		moral = "neutral"
	}

	if ethical == "neutral" && moral == "neutral" {
		return "true neutral"
	}
	return ethical + " " + moral
}

func clampZero(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
