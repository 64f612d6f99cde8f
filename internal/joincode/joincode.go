// Package joincode generates and resolves the 6-character classroom join codes.
package joincode

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// Length is the fixed size of a classroom join code.
const Length = 6

// ErrInvalidCode is returned when no 6-character code can be extracted.
var ErrInvalidCode = errors.New("valid classroom code is required")

var (
	codePattern     = regexp.MustCompile(`^[A-Z0-9]{6}$`)
	pathPattern     = regexp.MustCompile(`(?i)/classroom/([a-z0-9]{6})`)
	tokenPattern    = regexp.MustCompile(`(?i)\b([a-z0-9]{6})\b`)
	nonAlphanumeric = regexp.MustCompile(`[^a-zA-Z0-9]`)
)

// Resolve normalizes a raw code, a join URL with a code/classroomCode query
// parameter, or a /classroom/<code> path into an uppercase 6-character code.
// It is pure: the same input always yields the same output.
func Resolve(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidCode
	}

	// A bare code, possibly with separators typed in.
	if code, ok := clean(raw); ok {
		return code, nil
	}

	if u, err := url.Parse(raw); err == nil && u.IsAbs() && u.Host != "" {
		query := u.Query()
		for _, param := range []string{"code", "classroomCode"} {
			if code, ok := clean(query.Get(param)); ok {
				return code, nil
			}
		}
		if code, ok := clean(pathCandidate(u.Path)); ok {
			return code, nil
		}
	} else {
		// Not an absolute URL; fall back to pattern matching on the raw string.
		if m := pathPattern.FindStringSubmatch(raw); m != nil {
			return strings.ToUpper(m[1]), nil
		}
		if m := tokenPattern.FindStringSubmatch(raw); m != nil {
			return strings.ToUpper(m[1]), nil
		}
	}

	return "", ErrInvalidCode
}

// pathCandidate picks the segment following "classroom", or the last segment.
func pathCandidate(path string) string {
	var segments []string
	for _, seg := range strings.Split(path, "/") {
		if seg != "" {
			segments = append(segments, seg)
		}
	}
	if len(segments) == 0 {
		return ""
	}
	for i, seg := range segments {
		if strings.EqualFold(seg, "classroom") && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return segments[len(segments)-1]
}

func clean(candidate string) (string, bool) {
	code := strings.ToUpper(nonAlphanumeric.ReplaceAllString(candidate, ""))
	if codePattern.MatchString(code) {
		return code, true
	}
	return "", false
}

// Generate produces a random uppercase alphanumeric join code. Uniqueness is
// enforced by the storage layer's unique index, not here.
func Generate() string {
	var b strings.Builder
	for b.Len() < Length {
		buf := make([]byte, 4)
		_, _ = rand.Read(buf)
		encoded := base64.StdEncoding.EncodeToString(buf)
		b.WriteString(strings.ToUpper(nonAlphanumeric.ReplaceAllString(encoded, "")))
	}
	return b.String()[:Length]
}
