package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/meysamhadeli/kbchat/constants/lipgloss"
	"github.com/meysamhadeli/kbchat/providers/contracts"
	"github.com/meysamhadeli/kbchat/providers/models"
	"github.com/pterm/pterm"
)

const knowledgeBasePageSize = 100

func listKnowledgeBases(ctx context.Context, deps *RootDependencies, currentID string) error {
	return renderKnowledgeBases(ctx, deps.KnowledgeBase, currentID, os.Stdout)
}

func renderKnowledgeBases(ctx context.Context, knowledgeBase contracts.IKnowledgeBase, currentID string, out io.Writer) error {
	datasets, err := knowledgeBase.ListDatasets(ctx, "", 1, knowledgeBasePageSize)
	if err != nil {
		return err
	}

	if len(datasets.Data) == 0 {
		_, err := fmt.Fprintln(out, lipgloss.Yellow.Render("No knowledge bases found."))
		return err
	}

	return pterm.DefaultTable.WithHasHeader().WithWriter(out).WithData(knowledgeBaseTable(datasets.Data, currentID)).Render()
}

// knowledgeBaseTable marks the selected knowledge base with '*' in the first column.
func knowledgeBaseTable(datasets []models.Dataset, currentID string) pterm.TableData {
	data := pterm.TableData{{"", "ID", "Name", "Documents", "Words"}}
	for _, dataset := range datasets {
		marker := ""
		if dataset.ID == currentID {
			marker = "*"
		}
		data = append(data, []string{
			marker,
			dataset.ID,
			dataset.Name,
			strconv.Itoa(dataset.DocumentCount),
			strconv.Itoa(dataset.WordCount),
		})
	}
	return data
}
