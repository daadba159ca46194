package chat

import (
	"fmt"
	"strings"

	"github.com/meysamhadeli/kbchat/context_manager/contracts"
	cm_models "github.com/meysamhadeli/kbchat/context_manager/models"
	"github.com/meysamhadeli/kbchat/embed_data"
	scanner_models "github.com/meysamhadeli/kbchat/file_scanner/models"
	kb_models "github.com/meysamhadeli/kbchat/providers/models"
)

const (
	sectionSeparator = "\n\n______\n\n"
	entrySeparator   = "\n---------\n\n"
	segmentSeparator = "\n\n---\n\n"
	noKnowledge      = "No relevant content was found in the knowledge base."
)

// PromptBuilder assembles the system prompt sent with every question.
type PromptBuilder struct {
	planner contracts.IContextManager
}

func NewPromptBuilder(planner contracts.IContextManager) *PromptBuilder {
	return &PromptBuilder{planner: planner}
}

// PromptInput is everything a single question is answered from.
type PromptInput struct {
	UserInput string
	Segments  []kb_models.RetrievalRecord
	Attached  []scanner_models.FileRecord
	History   []string
}

// GeneratePrompt returns the system prompt and the user prompt for one question.
func (b *PromptBuilder) GeneratePrompt(input PromptInput) (string, string, error) {
	sections := make([]string, 0, 4)

	if len(input.History) > 0 {
		sections = append(sections, "## Here is the history of chats\n\n"+strings.Join(input.History, entrySeparator))
	}

	sections = append(sections, "## Here is the context retrieved from the knowledge base\n\n"+KnowledgeContext(input.Segments))

	if len(input.Attached) > 0 {
		attached, err := b.attachedContext(input.Attached)
		if err != nil {
			return "", "", err
		}
		if attached != "" {
			sections = append(sections, "## Here are the local files attached by the user\n\n"+attached)
		}
	}

	sections = append(sections, "## Here is the general template prompt for using AI\n\n"+strings.TrimSpace(string(embed_data.ChatPrompt)))

	userPrompt := fmt.Sprintf("## Here is user request\n%s", input.UserInput)
	return strings.Join(sections, sectionSeparator), userPrompt, nil
}

// KnowledgeContext joins the retrieved segments, best match first as returned by the knowledge base.
func KnowledgeContext(records []kb_models.RetrievalRecord) string {
	contents := make([]string, 0, len(records))
	for _, record := range records {
		content := strings.TrimSpace(record.Segment.Content)
		if content == "" {
			continue
		}
		if record.Segment.Document != nil && record.Segment.Document.Name != "" {
			content = fmt.Sprintf("Source: %s\n%s", record.Segment.Document.Name, content)
		}
		contents = append(contents, content)
	}
	if len(contents) == 0 {
		return noKnowledge
	}
	return strings.Join(contents, segmentSeparator)
}

// attachedContext renders the attached files the way the planner's strategy asks for: full units
// for single and batch, summaries for summary, and full units for manageable files plus summaries
// of large files for hierarchical.
func (b *PromptBuilder) attachedContext(files []scanner_models.FileRecord) (string, error) {
	plan, err := b.planner.PlanIngestion(files)
	if err != nil {
		return "", fmt.Errorf("failed to plan attached context: %w", err)
	}

	var parts []string
	if plan.Analysis.Warning != "" {
		parts = append(parts, "Note: "+plan.Analysis.Warning)
	}

	switch plan.Analysis.Strategy {
	case cm_models.StrategySummary:
		for _, estimate := range plan.Analysis.Files {
			parts = append(parts, b.planner.CreateFileSummary(estimate.File))
		}
	case cm_models.StrategyHierarchical:
		large := make(map[string]bool, len(plan.Analysis.LargeFiles))
		for _, file := range plan.Analysis.LargeFiles {
			large[file.Path] = true
			parts = append(parts, b.planner.CreateFileSummary(file))
		}
		for _, unit := range plan.Units {
			if !large[unit.Path] {
				parts = append(parts, renderUnit(unit))
			}
		}
	default:
		for _, unit := range plan.Units {
			parts = append(parts, renderUnit(unit))
		}
	}

	return strings.Join(parts, entrySeparator), nil
}

func renderUnit(unit cm_models.ContextChunk) string {
	header := "File: " + recordName(unit.FileRecord)
	if unit.IsPartial() {
		header = fmt.Sprintf("%s (part %d of %d)", header, unit.ChunkIndex, unit.TotalChunks)
	}
	return fmt.Sprintf("%s\n```%s\n%s\n```", header, unit.Language, strings.TrimRight(unit.Content, "\n"))
}

func recordName(file scanner_models.FileRecord) string {
	if file.RelativePath != "" {
		return file.RelativePath
	}
	return file.Name
}
