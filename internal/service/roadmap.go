package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"context"

	"github.com/invopop/jsonschema"

	"github.com/connexus-ai/resumatch/internal/model"
)

// DefaultTargetWeeks and the bounds on a caller-supplied target_weeks.
const (
	DefaultTargetWeeks = 8
	MinTargetWeeks     = 4
	MaxTargetWeeks     = 12
)

// minTasksPerWeek/maxTasksPerWeek bound a Week's task list.
const (
	minTasksPerWeek = 3
	maxTasksPerWeek = 5
)

// gapCoverageTarget is the minimum fraction of tasks across the whole plan
// that must target a Gap-set keyword.
const gapCoverageTarget = 0.70

// gradeEmphasis is the grade-tiered strategy table (spec 4.8 step 4),
// used both to steer the LLM prompt and to pick deterministic-fallback
// difficulty curves.
var gradeEmphasis = map[model.Grade]string{
	model.GradeD: "foundations first; single-keyword weeks; beginner resources dominate",
	model.GradeC: "fundamentals plus one intermediate project-themed week",
	model.GradeB: "mostly intermediate; introduce advanced topics in the final two weeks",
	model.GradeA: "advanced topics plus interview and portfolio polish",
	model.GradeS: "stretch topics plus open-source contribution and portfolio weeks",
}

// RoadmapCatalog abstracts catalog.Catalog for testability.
type RoadmapCatalog interface {
	Resolve(keyword string, preferredDifficulty model.Difficulty) []model.LearningResource
	Has(url string) bool
}

// RoadmapPlannerService implements the Roadmap Planner (spec section 4.8).
type RoadmapPlannerService struct {
	llm   LLM
	cat   RoadmapCatalog
	model string
}

// NewRoadmapPlannerService creates a RoadmapPlannerService.
func NewRoadmapPlannerService(llm LLM, cat RoadmapCatalog, model string) *RoadmapPlannerService {
	return &RoadmapPlannerService{llm: llm, cat: cat, model: model}
}

// Generate builds an N-week Roadmap for a MatchResult. targetWeeks is
// clamped to [MinTargetWeeks, MaxTargetWeeks]; zero selects
// DefaultTargetWeeks.
func (s *RoadmapPlannerService) Generate(ctx context.Context, match *model.MatchResult, resumeChunks, jdChunks []model.Chunk, targetWeeks int) (*model.Roadmap, error) {
	if match == nil {
		return nil, fmt.Errorf("service.Generate: match is nil")
	}
	totalWeeks := clampWeeks(targetWeeks)
	targetGrade := model.NextGrade(match.Grade)

	gapSet := computeGapSet(match, resumeChunks, jdChunks)
	keyAreas := topGapKeywords(gapSet, 5)

	weeks, err := s.generateWeeks(ctx, match, gapSet, targetGrade, totalWeeks)
	if err != nil {
		weeks = deterministicWeeks(match, gapSet, targetGrade, totalWeeks)
	}

	weeks = enforceGapCoverage(weeks, gapSet, totalWeeks)
	weeks = s.bindResources(weeks, match.Grade, totalWeeks)

	return &model.Roadmap{
		ResumeDocumentID:    match.ResumeDocumentID,
		JDDocumentID:        match.JDDocumentID,
		CurrentGrade:        match.Grade,
		TargetGrade:         targetGrade,
		TotalWeeks:          totalWeeks,
		Weeks:               weeks,
		KeyImprovementAreas: keyAreas,
	}, nil
}

func clampWeeks(n int) int {
	if n == 0 {
		return DefaultTargetWeeks
	}
	if n < MinTargetWeeks {
		return MinTargetWeeks
	}
	if n > MaxTargetWeeks {
		return MaxTargetWeeks
	}
	return n
}

// computeGapSet implements step 2: a JD keyword is a gap if (a) it is
// absent from the résumé's keyword set and not covered by a SimilarTechMatch,
// or (b) its enclosing JD section score is below 0.6.
func computeGapSet(match *model.MatchResult, resumeChunks, jdChunks []model.Chunk) map[string]model.GapKeyword {
	covered := make(map[string]bool)
	for _, hit := range match.SimilarTechHits {
		covered[normalizeKW(hit.JDKeyword)] = true
	}

	resumeKeywords := keywordSet(resumeChunks)

	lowScoreSections := make(map[model.SectionType]bool)
	for _, ss := range match.SectionScores {
		if ss.Score < 0.6 {
			lowScoreSections[ss.Section] = true
		}
	}

	gaps := make(map[string]model.GapKeyword)
	for _, c := range jdChunks {
		for kw := range keywordSet([]model.Chunk{c}) {
			if covered[kw] {
				continue
			}
			absentFromResume := !resumeKeywords[kw]
			if !absentFromResume && !lowScoreSections[c.SectionType] {
				continue
			}
			if _, exists := gaps[kw]; !exists {
				gaps[kw] = model.GapKeyword{Keyword: kw, Section: c.SectionType, Weight: sectionWeights[c.SectionType]}
			}
		}
	}
	return gaps
}

func normalizeKW(kw string) string {
	return strings.ToLower(strings.Join(strings.Fields(kw), ""))
}

// topGapKeywords returns the n gap keywords with the highest weight,
// breaking ties alphabetically for determinism.
func topGapKeywords(gaps map[string]model.GapKeyword, n int) []string {
	list := make([]model.GapKeyword, 0, len(gaps))
	for _, g := range gaps {
		list = append(list, g)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].Weight != list[j].Weight {
			return list[i].Weight > list[j].Weight
		}
		return list[i].Keyword < list[j].Keyword
	})
	if len(list) > n {
		list = list[:n]
	}
	out := make([]string, len(list))
	for i, g := range list {
		out[i] = g.Keyword
	}
	return out
}

// roadmapJSON / weekJSON / taskJSON mirror model.Roadmap's week shape for
// LLM schema generation and strict unmarshalling.
type roadmapJSON struct {
	Weeks []weekJSON `json:"weeks" jsonschema:"required,description=Exactly total_weeks entries, week_number contiguous from 1"`
}

type weekJSON struct {
	WeekNumber int        `json:"weekNumber" jsonschema:"required"`
	Theme      string     `json:"theme" jsonschema:"required"`
	Keywords   []string   `json:"keywords" jsonschema:"required"`
	Tasks      []taskJSON `json:"tasks" jsonschema:"required,description=3 to 5 tasks"`
}

type taskJSON struct {
	Title       string `json:"title" jsonschema:"required"`
	Description string `json:"description"`
	Keyword     string `json:"keyword" jsonschema:"required"`
	Priority    string `json:"priority"`
}

var roadmapSchema = mustRoadmapSchema()

func mustRoadmapSchema() string {
	reflector := &jsonschema.Reflector{ExpandedStruct: true, DoNotReference: true}
	schema := reflector.Reflect(&roadmapJSON{})
	data, err := json.Marshal(schema)
	if err != nil {
		panic(fmt.Sprintf("service: failed to build roadmap schema: %v", err))
	}
	return string(data)
}

func (s *RoadmapPlannerService) generateWeeks(ctx context.Context, match *model.MatchResult, gapSet map[string]model.GapKeyword, targetGrade model.Grade, totalWeeks int) ([]model.Week, error) {
	systemPrompt := "You are a curriculum planner for software engineers closing a skills gap.\n" +
		"Rules:\n" +
		"- Emit exactly " + itoa(totalWeeks) + " weeks, week_number contiguous starting at 1.\n" +
		"- Every week has 3 to 5 tasks.\n" +
		"- At least 70% of all tasks across the plan must target a gap-set keyword.\n" +
		"- Keywords must be lowercase with no whitespace.\n" +
		"- Respond with ONLY JSON matching this schema:\n" + roadmapSchema

	userPrompt := buildRoadmapPrompt(match, gapSet, targetGrade, totalWeeks)

	raw, err := s.llm.GenerateJSON(ctx, systemPrompt, userPrompt)
	if err != nil {
		return nil, fmt.Errorf("service.generateWeeks: %w", err)
	}

	weeks, err := parseRoadmapWeeks(raw, totalWeeks, gapSet)
	if err != nil {
		repairPrompt := userPrompt + "\n\n=== REPAIR ===\nYour previous response failed validation: " + err.Error() +
			"\nReturn ONLY valid JSON with exactly " + itoa(totalWeeks) + " weeks, 3-5 tasks each."
		raw, err = s.llm.GenerateJSON(ctx, systemPrompt, repairPrompt)
		if err != nil {
			return nil, fmt.Errorf("service.generateWeeks: repair call: %w", err)
		}
		weeks, err = parseRoadmapWeeks(raw, totalWeeks, gapSet)
		if err != nil {
			return nil, err
		}
	}
	return weeks, nil
}

func buildRoadmapPrompt(match *model.MatchResult, gapSet map[string]model.GapKeyword, targetGrade model.Grade, totalWeeks int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Current grade: %s. Target grade: %s. Total weeks: %d.\n", match.Grade, targetGrade, totalWeeks))
	sb.WriteString("Emphasis: " + gradeEmphasis[match.Grade] + "\n\n")
	sb.WriteString("=== GAP SET ===\n")
	for _, g := range gapSet {
		sb.WriteString(fmt.Sprintf("- %s (section: %s, weight: %.2f)\n", g.Keyword, labelFor(g.Section), g.Weight))
	}
	return sb.String()
}

func parseRoadmapWeeks(raw string, totalWeeks int, gapSet map[string]model.GapKeyword) ([]model.Week, error) {
	cleaned := strings.TrimSpace(raw)
	if strings.HasPrefix(cleaned, "```") {
		lines := strings.Split(cleaned, "\n")
		if len(lines) >= 3 {
			cleaned = strings.Join(lines[1:len(lines)-1], "\n")
		}
	}
	cleaned = strings.TrimSpace(cleaned)

	var parsed roadmapJSON
	if err := json.Unmarshal([]byte(cleaned), &parsed); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if len(parsed.Weeks) != totalWeeks {
		return nil, fmt.Errorf("got %d weeks, want %d", len(parsed.Weeks), totalWeeks)
	}

	weeks := make([]model.Week, totalWeeks)
	for i, w := range parsed.Weeks {
		if w.WeekNumber != i+1 {
			return nil, fmt.Errorf("week %d has weekNumber %d, want %d", i, w.WeekNumber, i+1)
		}
		if len(w.Tasks) < minTasksPerWeek || len(w.Tasks) > maxTasksPerWeek {
			return nil, fmt.Errorf("week %d has %d tasks, want %d-%d", w.WeekNumber, len(w.Tasks), minTasksPerWeek, maxTasksPerWeek)
		}

		tasks := make([]model.Task, len(w.Tasks))
		for j, t := range w.Tasks {
			kw := normalizeKW(t.Keyword)
			_, isGap := gapSet[kw]
			tasks[j] = model.Task{
				Title:       t.Title,
				Description: t.Description,
				Keyword:     kw,
				Priority:    priorityOrDefault(t.Priority),
				IsGapTask:   isGap,
			}
		}

		keywords := make([]string, len(w.Keywords))
		for j, kw := range w.Keywords {
			keywords[j] = normalizeKW(kw)
		}

		weeks[i] = model.Week{
			WeekNumber:  w.WeekNumber,
			Title:       w.Theme,
			Duration:    fmt.Sprintf("Week %d", w.WeekNumber),
			Description: fmt.Sprintf("Focus areas: %s", strings.Join(keywords, ", ")),
			Keywords:    keywords,
			Tasks:       tasks,
		}
	}
	return weeks, nil
}

func priorityOrDefault(p string) model.TaskPriority {
	switch model.TaskPriority(p) {
	case model.PriorityHigh, model.PriorityMedium, model.PriorityLow:
		return model.TaskPriority(p)
	default:
		return model.PriorityMedium
	}
}

// enforceGapCoverage implements step 3's 70/30 curriculum budget: if fewer
// than gapCoverageTarget of all tasks target the gap set, non-gap tasks are
// retargeted in plan order to gap keywords: first those no task covers yet,
// or, once every gap keyword is covered, all gap keywords in turn. With an
// empty gap set the weeks are returned unchanged.
func enforceGapCoverage(weeks []model.Week, gapSet map[string]model.GapKeyword, totalWeeks int) []model.Week {
	total, gapCount := 0, 0
	for _, w := range weeks {
		for _, t := range w.Tasks {
			total++
			if t.IsGapTask {
				gapCount++
			}
		}
	}
	if total == 0 || float64(gapCount)/float64(total) >= gapCoverageTarget {
		return weeks
	}

	uncovered := make([]string, 0, len(gapSet))
	coveredKW := make(map[string]bool)
	for _, w := range weeks {
		for _, t := range w.Tasks {
			if t.IsGapTask {
				coveredKW[t.Keyword] = true
			}
		}
	}
	for kw := range gapSet {
		if !coveredKW[kw] {
			uncovered = append(uncovered, kw)
		}
	}
	if len(uncovered) == 0 {
		for kw := range gapSet {
			uncovered = append(uncovered, kw)
		}
	}
	if len(uncovered) == 0 {
		return weeks
	}
	sort.Strings(uncovered)

	needed := int(gapCoverageTarget*float64(total)) - gapCount + 1
	idx := 0
	for wi := range weeks {
		for ti := range weeks[wi].Tasks {
			if needed <= 0 {
				break
			}
			t := &weeks[wi].Tasks[ti]
			if t.IsGapTask {
				continue
			}
			kw := uncovered[idx%len(uncovered)]
			idx++
			t.Keyword = kw
			t.IsGapTask = true
			t.Description = fmt.Sprintf("%s (retargeted to close a priority gap: %s)", t.Description, kw)
			needed--
		}
	}
	return weeks
}

// bindResources implements step 6: resolve up to 3 catalog resources per
// week by keyword, preferring the difficulty that matches the week's
// position in the grade-tiered curve.
func (s *RoadmapPlannerService) bindResources(weeks []model.Week, currentGrade model.Grade, totalWeeks int) []model.Week {
	for i := range weeks {
		difficulty := weekDifficulty(currentGrade, i, totalWeeks)

		seen := make(map[string]bool)
		var resources []model.LearningResource
		for _, t := range weeks[i].Tasks {
			if len(resources) >= 3 {
				break
			}
			for _, r := range s.cat.Resolve(t.Keyword, difficulty) {
				if seen[r.ID] {
					continue
				}
				seen[r.ID] = true
				resources = append(resources, r)
				if len(resources) >= 3 {
					break
				}
			}
		}
		weeks[i].Resources = resources
	}
	return weeks
}

// weekDifficulty maps a week's position to a target resource difficulty
// following the grade-tiered strategy table (spec 4.8 step 4).
func weekDifficulty(grade model.Grade, weekIndex, totalWeeks int) model.Difficulty {
	fromEnd := totalWeeks - 1 - weekIndex
	switch grade {
	case model.GradeD:
		return model.DifficultyBeginner
	case model.GradeC:
		if weekIndex == totalWeeks/2 {
			return model.DifficultyIntermediate
		}
		return model.DifficultyBeginner
	case model.GradeB:
		if fromEnd < 2 {
			return model.DifficultyAdvanced
		}
		return model.DifficultyIntermediate
	case model.GradeA:
		return model.DifficultyAdvanced
	default: // S
		return model.DifficultyAdvanced
	}
}

// deterministicWeeks builds a fully algorithmic plan when the LLM is
// unavailable or its output never validates, guaranteeing every output
// shape invariant without any generative call.
func deterministicWeeks(match *model.MatchResult, gapSet map[string]model.GapKeyword, targetGrade model.Grade, totalWeeks int) []model.Week {
	keywords := make([]string, 0, len(gapSet))
	for kw := range gapSet {
		keywords = append(keywords, kw)
	}
	sort.Slice(keywords, func(i, j int) bool {
		return gapSet[keywords[i]].Weight > gapSet[keywords[j]].Weight || (gapSet[keywords[i]].Weight == gapSet[keywords[j]].Weight && keywords[i] < keywords[j])
	})
	if len(keywords) == 0 {
		keywords = []string{"fundamentals"}
	}

	weeks := make([]model.Week, totalWeeks)
	const gapTasksPerWeek = 3
	for i := 0; i < totalWeeks; i++ {
		kw := keywords[i%len(keywords)]
		theme := fmt.Sprintf("Close the %s gap", kw)

		tasks := make([]model.Task, 0, gapTasksPerWeek+1)
		for j := 0; j < gapTasksPerWeek; j++ {
			tasks = append(tasks, model.Task{
				Title:       fmt.Sprintf("Study %s (session %d)", kw, j+1),
				Description: fmt.Sprintf("Work through core concepts of %s and apply them in a small exercise.", kw),
				Keyword:     kw,
				Priority:    model.PriorityHigh,
				IsGapTask:   true,
			})
		}
		tasks = append(tasks, model.Task{
			Title:       "Review progress and adjust plan",
			Description: "Reflect on the week's work and note open questions.",
			Keyword:     kw,
			Priority:    model.PriorityLow,
			IsGapTask:   true,
		})

		weeks[i] = model.Week{
			WeekNumber:  i + 1,
			Title:       theme,
			Duration:    fmt.Sprintf("Week %d", i+1),
			Description: fmt.Sprintf("Focus areas: %s", kw),
			Keywords:    []string{kw},
			Tasks:       tasks,
		}
	}
	return weeks
}

func itoa(n int) string {
	return fmt.Sprintf("%d", n)
}
