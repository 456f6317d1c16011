// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Sigil Contributors

package eval

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	scorePattern  = regexp.MustCompile(`(?i)\bscore["']?\s*[:=]\s*["']?(-?\d+(?:\.\d+)?)`)
	reasonPattern = regexp.MustCompile(`(?i)\breason["']?\s*[:=]\s*`)
	scoreTag      = regexp.MustCompile(`(?s)<S2>\s*(-?\d+(?:\.\d+)?)\s*</S2>`)
	reasonTag     = regexp.MustCompile(`(?s)<S1>(.*?)</S1>`)
	firstDigit    = regexp.MustCompile(`\d`)
)

// Judgment is a parsed score. Score is NaN when it could not be determined.
// HasReason is set when the output was structured, even if the reason text
// is empty.
type Judgment struct {
	Score     float64
	Reason    string
	HasReason bool
}

// Undetermined is the judgment reported when no score could be found.
func Undetermined() Judgment {
	return Judgment{Score: math.NaN()}
}

// ParseScore extracts a score and reason from free-form judge output.
//
// The structured forms "score: N, reason: text" (case-insensitive, ':' or
// '=') and "<S2>N</S2> ... <S1>text</S1>" are tried first; a structured score
// outside [lo, hi] becomes NaN and keeps its reason. Otherwise the first digit
// in the text is the score. With no digit at all the score is NaN.
func ParseScore(text string, lo, hi float64) Judgment {
	if j, ok := parseStructured(text); ok {
		if j.Score < lo || j.Score > hi {
			j.Score = math.NaN()
		}
		return j
	}
	if j, ok := parseTagged(text); ok {
		if j.Score < lo || j.Score > hi {
			j.Score = math.NaN()
		}
		return j
	}

	if d := firstDigit.FindString(text); d != "" {
		v, _ := strconv.ParseFloat(d, 64)
		return Judgment{Score: v}
	}
	return Undetermined()
}

func parseStructured(text string) (Judgment, bool) {
	sm := scorePattern.FindStringSubmatchIndex(text)
	if sm == nil {
		return Judgment{}, false
	}
	score, err := strconv.ParseFloat(text[sm[2]:sm[3]], 64)
	if err != nil {
		return Judgment{}, false
	}

	j := Judgment{Score: score, HasReason: true}
	rm := reasonPattern.FindStringIndex(text)
	if rm == nil {
		return j, true
	}

	reason := text[rm[1]:]
	// "reason: ..., score: N" puts the reason before the score.
	if rm[0] < sm[0] {
		reason = text[rm[1]:sm[0]]
	}
	j.Reason = cleanReason(reason)
	return j, true
}

func parseTagged(text string) (Judgment, bool) {
	sm := scoreTag.FindStringSubmatch(text)
	if sm == nil {
		return Judgment{}, false
	}
	score, err := strconv.ParseFloat(sm[1], 64)
	if err != nil {
		return Judgment{}, false
	}

	j := Judgment{Score: score, HasReason: true}
	if rm := reasonTag.FindStringSubmatch(text); rm != nil {
		j.Reason = strings.TrimSpace(rm[1])
	}
	return j, true
}

func cleanReason(s string) string {
	return strings.Trim(strings.TrimSpace(s), ` ,;"'}`)
}
