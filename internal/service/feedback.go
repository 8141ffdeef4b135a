package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"github.com/connexus-ai/resumatch/internal/apperr"
	"github.com/connexus-ai/resumatch/internal/model"
)

// LLM abstracts the generative model the Feedback Generator and Roadmap
// Planner call. Implementations retry transient failures themselves;
// callers here never retry per the spec's error-handling rules.
type LLM interface {
	GenerateJSON(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// minFeedbackItems and maxFeedbackItems bound every list in a Feedback.
const (
	minFeedbackItems = 2
	maxFeedbackItems = 5
)

// sectionLabels maps raw SectionType tags to the prose label an LLM (and
// the surrounding UI) should use, so raw taxonomy tags never leak into
// generated text.
var sectionLabels = map[model.SectionType]string{
	model.SectionSummary:          "professional summary",
	model.SectionExperience:       "work experience",
	model.SectionSkills:           "skills",
	model.SectionEducation:        "education",
	model.SectionProjects:         "projects",
	model.SectionCertifications:   "certifications",
	model.SectionRequirements:     "core requirements",
	model.SectionPreferred:        "preferred qualifications",
	model.SectionResponsibilities: "responsibilities",
	model.SectionTechnical:        "technical requirements",
	model.SectionBenefits:         "benefits",
	model.SectionOther:            "general content",
}

func labelFor(s model.SectionType) string {
	if l, ok := sectionLabels[s]; ok {
		return l
	}
	return string(s)
}

// feedbackSchema is the declared JSON schema for Feedback, generated once
// from the Go type via reflection and embedded in every generation prompt.
var feedbackSchema = mustFeedbackSchema()

func mustFeedbackSchema() string {
	reflector := &jsonschema.Reflector{
		ExpandedStruct: true,
		DoNotReference: true,
	}
	schema := reflector.Reflect(&feedbackJSON{})
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("service: failed to build feedback schema: %v", err))
	}
	return string(data)
}

// feedbackJSON mirrors model.Feedback for schema generation and strict
// unmarshalling of the LLM's response.
type feedbackJSON struct {
	Summary      string             `json:"summary" jsonschema:"required,description=One paragraph overview of the match"`
	Strengths    []feedbackItemJSON `json:"strengths" jsonschema:"required,description=2 to 5 strengths grounded in specific sections or keywords"`
	Improvements []feedbackItemJSON `json:"improvements" jsonschema:"required,description=2 to 5 improvement areas grounded in specific sections or keywords"`
	Potential    []feedbackItemJSON `json:"potential" jsonschema:"required,description=2 to 5 statements about growth potential"`
	ActionItems  []feedbackItemJSON `json:"actionItems" jsonschema:"required,description=2 to 5 concrete next actions"`
}

type feedbackItemJSON struct {
	Text    string `json:"text" jsonschema:"required"`
	Section string `json:"section,omitempty"`
}

// FeedbackGeneratorService produces the narrative gap-analysis feedback
// that accompanies a MatchResult.
type FeedbackGeneratorService struct {
	llm   LLM
	model string
}

// NewFeedbackGeneratorService creates a FeedbackGeneratorService.
func NewFeedbackGeneratorService(llm LLM, model string) *FeedbackGeneratorService {
	return &FeedbackGeneratorService{llm: llm, model: model}
}

// Generate produces grounded feedback from a MatchResult and the resume/JD
// chunk excerpts that fed it. On schema validation failure it retries once
// with a repair prompt, then falls back to a deterministic summary.
func (s *FeedbackGeneratorService) Generate(ctx context.Context, match *model.MatchResult, resumeChunks, jdChunks []model.Chunk) (*model.Feedback, error) {
	if match == nil {
		return nil, fmt.Errorf("service.Generate: match is nil")
	}
	if match.InsufficientData {
		return deterministicFeedback(match, resumeChunks, jdChunks), nil
	}

	systemPrompt := feedbackSystemPrompt()
	userPrompt := buildFeedbackPrompt(match, resumeChunks, jdChunks)

	raw, err := s.llm.GenerateJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, apperr.Upstream("feedback LLM call failed", err)
	}

	fb, err := parseFeedback(raw)
	if err != nil {
		repairPrompt := userPrompt + "\n\n=== REPAIR ===\nYour previous response failed schema validation: " +
			err.Error() + "\nReturn ONLY valid JSON matching the schema, with 2-5 items per list."
		raw, err = s.llm.GenerateJSON(ctx, systemPrompt, repairPrompt)
		if err != nil {
			return nil, apperr.Upstream("feedback LLM repair call failed", err)
		}
		fb, err = parseFeedback(raw)
		if err != nil {
			return deterministicFeedback(match, resumeChunks, jdChunks), nil
		}
	}

	return fb, nil
}

func feedbackSystemPrompt() string {
	return "You are a career-coaching assistant that compares a résumé against a job description.\n" +
		"Rules:\n" +
		"- Every item must be grounded in a specific section or keyword from the provided excerpts.\n" +
		"- Never fabricate job titles or employer names.\n" +
		"- Each list (strengths, improvements, potential, actionItems) must have between 2 and 5 items.\n" +
		"- Never use raw category tags (e.g. \"requirements\", \"technical\") in prose; use natural language.\n" +
		"- Respond with ONLY JSON matching this schema:\n" + feedbackSchema
}

func buildFeedbackPrompt(match *model.MatchResult, resumeChunks, jdChunks []model.Chunk) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("=== MATCH SUMMARY ===\nScore: %d, Grade: %s\n\n", match.MatchScore, match.Grade))

	sb.WriteString("=== SECTION SCORES ===\n")
	for _, ss := range match.SectionScores {
		sb.WriteString(fmt.Sprintf("- %s: %.2f (weight %.2f, %d chunks)\n", labelFor(ss.Section), ss.Score, ss.Weight, ss.ChunkCount))
	}

	if len(match.SimilarTechHits) > 0 {
		sb.WriteString("\n=== RELATED TECHNOLOGY MATCHES ===\n")
		for _, hit := range match.SimilarTechHits {
			sb.WriteString(fmt.Sprintf("- JD asks for %q, résumé shows %q (related via %q)\n", hit.JDKeyword, hit.ResumeKeyword, hit.Relationship))
		}
	}

	sb.WriteString("\n=== RÉSUMÉ EXCERPTS ===\n")
	for _, c := range resumeChunks {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", labelFor(c.SectionType), truncateStr(c.Content, 400)))
	}

	sb.WriteString("\n=== JOB DESCRIPTION EXCERPTS ===\n")
	for _, c := range jdChunks {
		sb.WriteString(fmt.Sprintf("[%s] %s\n", labelFor(c.SectionType), truncateStr(c.Content, 400)))
	}

	return sb.String()
}

// parseFeedback unmarshals and validates the LLM's JSON response against
// the list-length invariants declared in feedbackSchema.
func parseFeedback(raw string) (*model.Feedback, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	var parsed feedbackJSON
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}

	lists := map[string][]feedbackItemJSON{
		"strengths":    parsed.Strengths,
		"improvements": parsed.Improvements,
		"potential":    parsed.Potential,
		"actionItems":  parsed.ActionItems,
	}
	for name, items := range lists {
		if len(items) < minFeedbackItems || len(items) > maxFeedbackItems {
			return nil, fmt.Errorf("%s has %d items, want %d-%d", name, len(items), minFeedbackItems, maxFeedbackItems)
		}
	}
	if strings.TrimSpace(parsed.Summary) == "" {
		return nil, fmt.Errorf("summary is empty")
	}

	return &model.Feedback{
		Summary:      parsed.Summary,
		Strengths:    toFeedbackItems(parsed.Strengths),
		Improvements: toFeedbackItems(parsed.Improvements),
		Potential:    toFeedbackItems(parsed.Potential),
		ActionItems:  toFeedbackItems(parsed.ActionItems),
	}, nil
}

func toFeedbackItems(items []feedbackItemJSON) []model.FeedbackItem {
	out := make([]model.FeedbackItem, len(items))
	for i, it := range items {
		out[i] = model.FeedbackItem{Text: it.Text, Section: it.Section}
	}
	return out
}

// deterministicFeedback builds a fallback Feedback from the match's section
// scores alone, used when the repaired LLM response still fails validation
// or the match has insufficient data. A failed LLM call is returned as an
// error instead.
func deterministicFeedback(match *model.MatchResult, resumeChunks, jdChunks []model.Chunk) *model.Feedback {
	if match.InsufficientData {
		return &model.Feedback{
			Summary: "Not enough text could be extracted from one of the documents to generate a detailed comparison.",
			Strengths: []model.FeedbackItem{
				{Text: "Re-upload both documents to get a full section-by-section comparison."},
				{Text: "Ensure the file contains selectable text rather than a scanned image."},
			},
			Improvements: []model.FeedbackItem{
				{Text: "Provide a résumé with clearly labeled sections such as experience and skills."},
				{Text: "Provide a job description with a requirements or responsibilities section."},
			},
			Potential: []model.FeedbackItem{
				{Text: "Once both documents are ingested successfully, a full match can be computed."},
				{Text: "A complete analysis will surface section-by-section strengths and gaps."},
			},
			ActionItems: []model.FeedbackItem{
				{Text: "Re-upload the affected document."},
				{Text: "Retry the match once both documents show a completed status."},
			},
		}
	}

	sorted := append([]model.SectionScore{}, match.SectionScores...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Score > sorted[j].Score })

	var strengths, improvements []model.FeedbackItem
	for _, ss := range sorted {
		item := model.FeedbackItem{
			Text:    fmt.Sprintf("%s scored %.0f%% alignment with the job description.", capitalize(labelFor(ss.Section)), ss.Score*100),
			Section: string(ss.Section),
		}
		if ss.Score >= 0.6 {
			strengths = append(strengths, item)
		} else {
			improvements = append(improvements, item)
		}
	}
	strengths = padFeedback(strengths, "The résumé shows solid alignment on several sections of the job description.")
	improvements = padFeedback(improvements, "Consider tailoring the résumé further to the job description's requirements.")

	potential := []model.FeedbackItem{
		{Text: fmt.Sprintf("Overall grade is %s with a match score of %d.", match.Grade, match.MatchScore)},
		{Text: "Closing the top gap areas would likely move the grade up a tier."},
	}
	actions := []model.FeedbackItem{
		{Text: "Review the lowest-scoring sections above and add concrete, quantified examples."},
		{Text: "Mirror the job description's terminology where it accurately reflects your experience."},
	}
	if len(match.SimilarTechHits) > 0 {
		actions = append(actions, model.FeedbackItem{
			Text: fmt.Sprintf("Call out %q explicitly if it best reflects your experience with %q.", match.SimilarTechHits[0].JDKeyword, match.SimilarTechHits[0].ResumeKeyword),
		})
	}

	return &model.Feedback{
		Summary:      fmt.Sprintf("This résumé earned grade %s (score %d) against the job description.", match.Grade, match.MatchScore),
		Strengths:    capFeedback(strengths),
		Improvements: capFeedback(improvements),
		Potential:    capFeedback(potential),
		ActionItems:  capFeedback(actions),
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func padFeedback(items []model.FeedbackItem, filler string) []model.FeedbackItem {
	for len(items) < minFeedbackItems {
		items = append(items, model.FeedbackItem{Text: filler})
	}
	return items
}

func capFeedback(items []model.FeedbackItem) []model.FeedbackItem {
	if len(items) > maxFeedbackItems {
		return items[:maxFeedbackItems]
	}
	return items
}
