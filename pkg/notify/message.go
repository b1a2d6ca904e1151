package notify

import (
	"fmt"

	goslack "github.com/slack-go/slack"
)

const maxBlockTextLength = 2900

func section(text string) goslack.Block {
	return goslack.NewSectionBlock(
		goslack.NewTextBlockObject(goslack.MarkdownType, text, false, false),
		nil, nil,
	)
}

// BuildLoopStartedMessage creates Block Kit blocks for a loop start.
func BuildLoopStartedMessage(loopID, agentID, channelID, goal string) []goslack.Block {
	text := fmt.Sprintf(":arrows_counterclockwise: *Loop started* `%s`\nAgent `%s` on channel `%s`",
		loopID, agentID, channelID)
	if goal != "" {
		text += "\nGoal: " + truncateForSlack(goal)
	}
	return []goslack.Block{section(text)}
}

// BuildLoopStoppedMessage creates Block Kit blocks for a loop stop.
func BuildLoopStoppedMessage(loopID, agentID, channelID string) []goslack.Block {
	text := fmt.Sprintf(":octagonal_sign: *Loop stopped* `%s`\nAgent `%s` on channel `%s`",
		loopID, agentID, channelID)
	return []goslack.Block{section(text)}
}

// truncateForSlack keeps text under the Block Kit section limit.
func truncateForSlack(text string) string {
	if len(text) <= maxBlockTextLength {
		return text
	}
	return text[:maxBlockTextLength] + "…"
}
