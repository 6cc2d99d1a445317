package fetcher

import (
	"errors"
	"strings"
)

// ErrChallenge marks a response that is an anti-bot interstitial instead of
// the requested page.
var ErrChallenge = errors.New("anti-bot challenge page")

// ChallengeKind identifies the interstitial served in place of a page.
type ChallengeKind string

const (
	ChallengeReCaptcha  ChallengeKind = "recaptcha"
	ChallengeHCaptcha   ChallengeKind = "hcaptcha"
	ChallengeTurnstile  ChallengeKind = "turnstile"
	ChallengeCloudflare ChallengeKind = "cloudflare"
)

// DetectChallenge reports whether body is a CAPTCHA or browser-check page.
// Widgets only count when they carry a site key, so a page that merely
// loads a CAPTCHA script for a form is not flagged.
func DetectChallenge(body string) ChallengeKind {
	lower := strings.ToLower(body)

	if strings.Contains(lower, "cf-chl-") || strings.Contains(lower, "challenge-platform") {
		return ChallengeCloudflare
	}
	if !strings.Contains(body, `data-sitekey="`) {
		return ""
	}
	switch {
	case strings.Contains(lower, "cf-turnstile"):
		return ChallengeTurnstile
	case strings.Contains(lower, "h-captcha"):
		return ChallengeHCaptcha
	case strings.Contains(lower, "g-recaptcha"):
		return ChallengeReCaptcha
	}
	return ""
}
