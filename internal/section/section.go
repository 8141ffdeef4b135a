// Package section classifies normalized text fragments into the closed
// section vocabulary used by the matching engine's weight table.
package section

import (
	"strings"

	"github.com/connexus-ai/resumatch/internal/model"
)

// headingEntry pairs a lower-cased heading keyword with the section it
// signals. The heading tables are slices, not maps, so that scoring iterates
// in a fixed order: Go's map iteration order is randomized, and ranging over
// one here would make Classify's keyword-count scoring non-deterministic
// across runs on identical input.
type headingEntry struct {
	heading string
	section model.SectionType
}

var resumeHeadings = []headingEntry{
	{"summary", model.SectionSummary},
	{"objective", model.SectionSummary},
	{"profile", model.SectionSummary},
	{"about", model.SectionSummary},
	{"experience", model.SectionExperience},
	{"work experience", model.SectionExperience},
	{"employment", model.SectionExperience},
	{"work history", model.SectionExperience},
	{"skills", model.SectionSkills},
	{"technical skills", model.SectionSkills},
	{"core competencies", model.SectionSkills},
	{"education", model.SectionEducation},
	{"academic background", model.SectionEducation},
	{"projects", model.SectionProjects},
	{"personal projects", model.SectionProjects},
	{"certifications", model.SectionCertifications},
	{"licenses", model.SectionCertifications},
	{"certificates", model.SectionCertifications},
}

var jdHeadings = []headingEntry{
	{"requirements", model.SectionRequirements},
	{"required qualifications", model.SectionRequirements},
	{"minimum qualifications", model.SectionRequirements},
	{"must have", model.SectionRequirements},
	{"preferred", model.SectionPreferred},
	{"preferred qualifications", model.SectionPreferred},
	{"nice to have", model.SectionPreferred},
	{"bonus", model.SectionPreferred},
	{"responsibilities", model.SectionResponsibilities},
	{"what you'll do", model.SectionResponsibilities},
	{"duties", model.SectionResponsibilities},
	{"role", model.SectionResponsibilities},
	{"technical", model.SectionTechnical},
	{"tech stack", model.SectionTechnical},
	{"technologies", model.SectionTechnical},
	{"stack", model.SectionTechnical},
	{"benefits", model.SectionBenefits},
	{"perks", model.SectionBenefits},
	{"compensation", model.SectionBenefits},
	{"what we offer", model.SectionBenefits},
}

// specificity ranks sections from most to least specific for tie-breaking,
// per Classify's "preferred over requirements" rule: when two sections tie
// on keyword count, the higher-ranked (more specific) section wins.
var specificity = map[model.SectionType]int{
	model.SectionTechnical:        6,
	model.SectionResponsibilities: 5,
	model.SectionPreferred:        4,
	model.SectionRequirements:     3,
	model.SectionProjects:         3,
	model.SectionCertifications:   2,
	model.SectionSkills:           2,
	model.SectionExperience:       1,
	model.SectionEducation:        1,
	model.SectionSummary:          1,
	model.SectionBenefits:         0,
	model.SectionOther:            -1,
}

// headingsFor returns the heading->section table for a document's file type.
func headingsFor(ft model.FileType) []headingEntry {
	if ft == model.FileTypeJD {
		return jdHeadings
	}
	return resumeHeadings
}

// Classify assigns a SectionType to a text fragment given the owning
// document's file type. It is a deterministic keyword heuristic: if the
// fragment's first non-blank line matches a known heading keyword, that
// section wins; otherwise the whole fragment is scored against every
// section's keyword set and the highest-scoring section is returned. Ties
// are broken toward the more specific (non-Other) candidate. A fragment
// with no matches of any confidence falls back to SectionOther.
func Classify(fragment string, fileType model.FileType) model.SectionType {
	headings := headingsFor(fileType)

	firstLine := firstNonBlankLine(fragment)
	if sec, ok := matchHeading(firstLine, headings); ok {
		return sec
	}

	lower := strings.ToLower(fragment)
	best := model.SectionOther
	bestScore := 0
	for _, entry := range headings {
		score := strings.Count(lower, entry.heading)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && specificity[entry.section] > specificity[best]) {
			bestScore = score
			best = entry.section
		}
	}

	const minConfidence = 1
	if bestScore < minConfidence {
		return model.SectionOther
	}
	return best
}

func matchHeading(line string, headings []headingEntry) (model.SectionType, bool) {
	lower := strings.ToLower(strings.TrimSpace(line))
	lower = strings.Trim(lower, ":#*- \t")
	if lower == "" {
		return "", false
	}
	for _, entry := range headings {
		if entry.heading == lower {
			return entry.section, true
		}
	}
	best := model.SectionOther
	found := false
	for _, entry := range headings {
		if strings.Contains(lower, entry.heading) && len(lower) < len(entry.heading)+20 {
			if !found || specificity[entry.section] > specificity[best] {
				best = entry.section
				found = true
			}
		}
	}
	return best, found
}

func firstNonBlankLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) != "" {
			return line
		}
	}
	return ""
}
