package slackadapter

import (
	"fmt"
	"strings"

	"github.com/slack-go/slack"

	"github.com/kirillkom/research-bot/internal/core/domain"
	"github.com/kirillkom/research-bot/internal/infrastructure/textutil"
)

const (
	// Section text is capped at 3000 chars by Block Kit.
	summaryChunkSize = 2800
	headerMaxLength  = 150

	viewRecordActionID = "view_record"
	errorPrefix        = ":x: *PDF Processing Error*"
)

// SummaryBlocks renders the success message for one processed document.
// The record button is present only when recordURL is set.
func SummaryBlocks(fileName string, metadata domain.ExtractedMetadata, recordURL string) []slack.Block {
	header := textutil.Truncate(":page_facing_up: PDF Analysis Complete: "+textutil.NormalizeWhitespace(fileName), headerMaxLength, "...")
	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, header, true, false)),
		slack.NewSectionBlock(markdown("*:clipboard: METADATA EXTRACTED:*"), nil, nil),
		slack.NewSectionBlock(nil, []*slack.TextBlockObject{
			markdown("*Title:*\n" + metadata.Title),
			markdown("*Year:*\n" + metadata.YearText()),
			markdown("*Topic:*\n" + metadata.Topic),
			markdown("*Study Type:*\n" + metadata.StudyType),
		}, nil),
	}

	if link := metadata.LinkText(); link != "" {
		blocks = append(blocks, slack.NewSectionBlock(markdown("*:link: Link:* "+link), nil, nil))
	}

	blocks = append(blocks, slack.NewDividerBlock())
	for i, chunk := range textutil.NewSplitter(summaryChunkSize).Split("*:memo: SUMMARY:*\n" + metadata.Summary) {
		if i > 0 {
			chunk = strings.TrimLeft(chunk, " \t\n")
			if chunk == "" {
				continue
			}
		}
		blocks = append(blocks, slack.NewSectionBlock(markdown(chunk), nil, nil))
	}
	blocks = append(blocks, slack.NewDividerBlock())

	footer := ":robot_face: Analyzed by OpenAI"
	if recordURL != "" {
		footer += " • :card_file_box: Saved to Airtable"
	}
	blocks = append(blocks, slack.NewContextBlock("", markdown(footer)))

	if recordURL != "" {
		button := slack.NewButtonBlockElement(viewRecordActionID, "", slack.NewTextBlockObject(slack.PlainTextType, "View in Airtable", false, false))
		button.URL = recordURL
		blocks = append(blocks, slack.NewActionBlock("record_actions", button))
	}
	return blocks
}

// SummaryFallbackText is the notification text shown by clients that
// cannot render blocks.
func SummaryFallbackText(fileName string) string {
	return "PDF Analysis Complete: " + fileName
}

func ErrorText(message string) string {
	return fmt.Sprintf("%s\n\n%s\n\nPlease try again or contact support.", errorPrefix, message)
}

func markdown(text string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, text, false, false)
}
