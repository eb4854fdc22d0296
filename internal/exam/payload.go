// Package exam turns raw exam-result payloads into canonical verified-skill
// records.
package exam

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPayload is returned when a payload cannot be decoded or does
// not match the payload schema.
var ErrInvalidPayload = errors.New("invalid exam payload")

// Type distinguishes the two exam call sites.
type Type string

const (
	// Baseline exams are diagnostic: they only update competencies the
	// user already owns and are always reported downstream as failed.
	Baseline Type = "baseline"

	// PostCourse exams may grant new competencies and report their
	// actual outcome.
	PostCourse Type = "post-course"
)

// ParseType parses an exam type, accepting common spellings.
func ParseType(s string) (Type, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "baseline", "baseline-exam", "baseline_exam":
		return Baseline, nil
	case "post-course", "postcourse", "post_course", "post-course-exam", "post_course_exam":
		return PostCourse, nil
	default:
		return "", fmt.Errorf("unknown exam type %q", s)
	}
}

// Entry is one reported skill in canonical form, before resolution.
type Entry struct {
	SkillID   string
	SkillName string
	Status    string
	Score     *float64
}

// Payload is a decoded exam result. Every legacy field-name variant has
// been folded into this one shape.
type Payload struct {
	UserID  string
	ExamID  string
	Type    Type
	Passed  bool
	Entries []Entry
}

// ExamStatus is the status reported downstream: baseline exams are always
// "failed", post-course exams report the actual outcome.
func (p *Payload) ExamStatus() string {
	if p.Type == PostCourse && p.Passed {
		return "passed"
	}
	return "failed"
}

// rawEntry is the wire form of a skill entry.
type rawEntry struct {
	SkillID   string   `json:"skill_id"`
	SkillName string   `json:"skill_name"`
	Status    string   `json:"status"`
	Score     *float64 `json:"score"`
}

// rawPayload is the wire form of an exam result. Skills may arrive under
// any of three names.
type rawPayload struct {
	UserID         string     `json:"user_id"`
	ExamID         string     `json:"exam_id"`
	ExamType       string     `json:"exam_type"`
	FinalStatus    string     `json:"final_status"`
	Status         string     `json:"status"`
	Passed         *bool      `json:"passed"`
	Skills         []rawEntry `json:"skills"`
	VerifiedSkills []rawEntry `json:"verified_skills"`
	VerifiedCamel  []rawEntry `json:"verifiedSkills"`
}

// Decode validates data against the payload schema and folds it into a
// Payload. defaultType is used when the payload carries no exam_type.
func Decode(data []byte, defaultType Type) (*Payload, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := validatePayload(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	var raw rawPayload
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	p := &Payload{
		UserID: strings.TrimSpace(raw.UserID),
		ExamID: raw.ExamID,
		Type:   defaultType,
	}
	if raw.ExamType != "" {
		t, err := ParseType(raw.ExamType)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		p.Type = t
	}
	if p.Type == "" {
		return nil, fmt.Errorf("%w: exam type is required", ErrInvalidPayload)
	}

	switch {
	case raw.Passed != nil:
		p.Passed = *raw.Passed
	case raw.FinalStatus != "":
		p.Passed = IsSuccessStatus(raw.FinalStatus)
	default:
		p.Passed = IsSuccessStatus(raw.Status)
	}

	entries := raw.Skills
	if entries == nil {
		entries = raw.VerifiedSkills
	}
	if entries == nil {
		entries = raw.VerifiedCamel
	}
	p.Entries = make([]Entry, 0, len(entries))
	for _, e := range entries {
		p.Entries = append(p.Entries, Entry{
			SkillID:   strings.TrimSpace(e.SkillID),
			SkillName: e.SkillName,
			Status:    e.Status,
			Score:     e.Score,
		})
	}
	return p, nil
}

// successStatuses are the statuses that count as a demonstrated skill
// across exam types, after trimming and lowercasing.
var successStatuses = map[string]bool{
	"pass":     true,
	"passed":   true,
	"acquired": true,
	"success":  true,
	"verified": true,
}

// IsSuccessStatus reports whether status means the skill was demonstrated.
func IsSuccessStatus(status string) bool {
	return successStatuses[strings.ToLower(strings.TrimSpace(status))]
}
