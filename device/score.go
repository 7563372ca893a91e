package device

import "time"

// Signals are the fingerprinting observations reported for a device.
type Signals struct {
	Incognito             bool
	AdBlock               bool
	VPN                   bool
	Proxy                 bool
	Bot                   bool
	Tampering             bool
	LiedLanguages         bool
	LiedResolution        bool
	LiedOS                bool
	LiedBrowser           bool
	FingerprintConfidence float64
	PublicKey             string
	HasLocalStorage       bool
	HasSessionStorage     bool
	CookiesEnabled        bool

	BrowserName       string
	BrowserVersion    string
	OSName            string
	OSVersion         string
	ScreenResolution  string
	Timezone          string
	Language          string
	CanvasFingerprint string
}

// Level is the bucketed trust of a score.
type Level string

const (
	LevelHigh    Level = "high"
	LevelMedium  Level = "medium"
	LevelLow     Level = "low"
	LevelBlocked Level = "blocked"
)

const (
	baseScore = 100

	penaltyIncognito = 10
	penaltyAdBlock   = 5
	penaltyVPN       = 20
	penaltyProxy     = 20
	penaltyBot       = 40
	penaltyTampering = 30
	penaltyLie       = 15

	bonusConfidenceHigh = 10
	bonusConfidenceGood = 5
	bonusPublicKey      = 5
	bonusProfile        = 5
	bonusBrowserFeature = 3
	bonusEstablished    = 10
	bonusRecent         = 5

	highThreshold   = 80
	mediumThreshold = 50
	lowThreshold    = 30
)

// Score computes the 0..100 trust score of a device from scratch. firstSeen
// is the zero time for a device that has never been seen before.
func Score(s Signals, firstSeen, now time.Time) int {
	score := baseScore

	if s.Incognito {
		score -= penaltyIncognito
	}
	if s.AdBlock {
		score -= penaltyAdBlock
	}
	if s.VPN {
		score -= penaltyVPN
	}
	if s.Proxy {
		score -= penaltyProxy
	}
	if s.Bot {
		score -= penaltyBot
	}
	if s.Tampering {
		score -= penaltyTampering
	}
	score -= penaltyLie * s.lieCount()

	switch {
	case s.FingerprintConfidence > 0.95:
		score += bonusConfidenceHigh
	case s.FingerprintConfidence > 0.85:
		score += bonusConfidenceGood
	}
	if s.PublicKey != "" {
		score += bonusPublicKey
	}
	if s.completeProfile() {
		score += bonusProfile
	}
	if s.HasLocalStorage {
		score += bonusBrowserFeature
	}
	if s.HasSessionStorage {
		score += bonusBrowserFeature
	}
	if s.CookiesEnabled {
		score += bonusBrowserFeature
	}

	if !firstSeen.IsZero() {
		switch age := now.Sub(firstSeen); {
		case age > 30*24*time.Hour:
			score += bonusEstablished
		case age > 7*24*time.Hour:
			score += bonusRecent
		}
	}

	return clamp(score)
}

func clamp(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

// LevelFor buckets a score.
func LevelFor(score int) Level {
	switch {
	case score >= highThreshold:
		return LevelHigh
	case score >= mediumThreshold:
		return LevelMedium
	case score >= lowThreshold:
		return LevelLow
	default:
		return LevelBlocked
	}
}

// ShouldAutoBlock reports whether at least two severe indicators hold. The
// indicators are bot, tampering, VPN together with proxy, and three or more
// simultaneous lie signals.
func ShouldAutoBlock(s Signals) bool {
	severe := 0
	if s.Bot {
		severe++
	}
	if s.Tampering {
		severe++
	}
	if s.VPN && s.Proxy {
		severe++
	}
	if s.lieCount() >= 3 {
		severe++
	}
	return severe >= 2
}

// Recommendations returns the security measures suggested for a score.
func Recommendations(score int) []string {
	switch LevelFor(score) {
	case LevelHigh:
		return []string{
			"Standard authentication sufficient",
			"Monitor for unusual activity",
		}
	case LevelMedium:
		return []string{
			"Consider two-factor authentication",
			"Monitor closely for suspicious activity",
			"Limit sensitive operations",
		}
	case LevelLow:
		return []string{
			"Require two-factor authentication",
			"Restrict access to sensitive features",
			"Enable enhanced monitoring",
			"Consider CAPTCHA verification",
		}
	default:
		return []string{
			"Block access to sensitive operations",
			"Require manual verification",
			"Enable maximum security measures",
			"Consider blocking device entirely",
		}
	}
}

func (s Signals) lieCount() int {
	n := 0
	for _, lied := range [...]bool{s.LiedLanguages, s.LiedResolution, s.LiedOS, s.LiedBrowser} {
		if lied {
			n++
		}
	}
	return n
}

func (s Signals) completeProfile() bool {
	return s.BrowserName != "" &&
		s.BrowserVersion != "" &&
		s.OSName != "" &&
		s.OSVersion != "" &&
		s.ScreenResolution != "" &&
		s.Timezone != "" &&
		s.Language != "" &&
		s.CanvasFingerprint != ""
}
