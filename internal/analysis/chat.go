package analysis

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pavewatch/pavewatch-go/internal/conf"
	"github.com/pavewatch/pavewatch-go/internal/pipeline"
)

// InteractiveChat starts a terminal question loop against one committed
// assessment. The first answered turn pins the session so follow-up
// questions share history. The loop ends on EOF or an exit keyword.
func InteractiveChat(ctx context.Context, settings *conf.Settings, assessmentID string, in io.Reader, out io.Writer) error {
	env, err := buildEnvironment(ctx, settings)
	if err != nil {
		return err
	}
	defer env.Close()

	assessment, err := env.store.GetAssessment(assessmentID)
	if err != nil {
		return fmt.Errorf("cannot chat about %s: %w", assessmentID, err)
	}

	fmt.Fprintf(out, "Assessment %s: score %d/100 (%s), %d defects\n",
		assessment.PublicID, assessment.Score, assessment.Rating, len(assessment.Detections))
	fmt.Fprintln(out, "Ask a question, or type \"exit\" to quit.")

	var sessionID string
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		question := strings.TrimSpace(scanner.Text())
		if question == "" {
			continue
		}
		if question == "exit" || question == "quit" {
			break
		}

		result, err := env.service.Chat(ctx, pipeline.ChatRequest{
			AssessmentID: assessmentID,
			SessionID:    sessionID,
			Question:     question,
		})
		if err != nil {
			fmt.Fprintf(out, "❌ %v\n", err)
			continue
		}
		sessionID = result.SessionID

		if result.GeneratedQuery != "" {
			fmt.Fprintf(out, "[query] %s\n", result.GeneratedQuery)
		}
		fmt.Fprintf(out, "%s\n\n", result.Answer)
	}

	return scanner.Err()
}
