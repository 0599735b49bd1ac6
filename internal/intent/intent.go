/*
Package intent decides which handling path a user message takes. Cheap
keyword rules short-circuit the obvious cases; genuinely ambiguous
nutrition-sounding messages fall through to a tiny yes/no completion
call.
*/
package intent

import (
	"context"
	"strings"
	"unicode"

	"FitPulse_V0.1/internal/llm"
	"github.com/rs/zerolog/log"
)

// Intent is the classified purpose of a user message.
type Intent string

const (
	IntentNutrition Intent = "nutrition"
	IntentWorkout   Intent = "workout"
	IntentDietPlan  Intent = "diet_plan"
	IntentGeneral   Intent = "general"
)

// Completer is the single-shot completion dependency, injected so the
// rule table stays testable without network access.
type Completer interface {
	Complete(ctx context.Context, messages []llm.Message, maxTokens int, temperature float64) (string, error)
}

// outcome of a matched rule: either a final intent or a delegation to
// the AI sub-classifier.
type rule struct {
	patterns []string
	intent   Intent
	delegate bool
}

// Ordered rule table, first match wins.
var rules = []rule{
	{
		patterns: []string{"workout", "exercise", "training", "routine", "gym", "muscle", "strength"},
		intent:   IntentWorkout,
	},
	{
		patterns: []string{"diet plan", "meal plan", "give me a plan", "plan my meals", "eating plan"},
		intent:   IntentDietPlan,
	},
	{
		patterns: []string{"calories", "calorie", "nutrition", "macros", "protein in", "carbs in", "fat in", "how many grams"},
		delegate: true,
	},
}

// Classifier routes messages to exactly one Intent.
type Classifier struct {
	completer Completer
}

// NewClassifier wires the AI fallback strategy.
func NewClassifier(completer Completer) *Classifier {
	return &Classifier{completer: completer}
}

// Classify evaluates the rule table and, where a rule delegates, the
// AI sub-classifier. Messages carrying a numeric token are treated as
// potentially nutrition-specific even without a keyword hit.
func (c *Classifier) Classify(ctx context.Context, message string) Intent {
	lower := strings.ToLower(message)

	for _, r := range rules {
		for _, pattern := range r.patterns {
			if !strings.Contains(lower, pattern) {
				continue
			}
			if r.delegate {
				return c.subClassify(ctx, message)
			}
			return r.intent
		}
	}

	if strings.ContainsFunc(message, unicode.IsDigit) {
		return c.subClassify(ctx, message)
	}

	return IntentGeneral
}

const subClassifyPrompt = `You answer strictly "yes" or "no". Decide whether the user's message asks for specific nutrition facts of a named food (requiring a nutrition database lookup) rather than general dietary advice.

Examples:
- "How many calories in 3 eggs?" -> yes
- "Calories in pizza" -> yes
- "Nutrition facts for 100g salmon" -> yes
- "How do I cut calories to lose weight?" -> no
- "What should my daily macros be?" -> no
- "Is a high protein diet good for me?" -> no

Answer with a single word: yes or no.`

// subClassify asks the completion service the yes/no question. Only
// "yes" selects a nutrition lookup; everything else, including a
// failed call, resolves to a diet-plan conversation. Failures are
// logged and never raised.
func (c *Classifier) subClassify(ctx context.Context, message string) Intent {
	messages := []llm.Message{
		{Role: llm.RoleSystem, Content: subClassifyPrompt},
		{Role: llm.RoleUser, Content: message},
	}

	reply, err := c.completer.Complete(ctx, messages, 5, 0)
	if err != nil {
		log.Warn().Err(err).Msg("Intent sub-classification call failed, falling back")
		reply = ""
	}

	if strings.Contains(strings.ToLower(reply), "yes") {
		return IntentNutrition
	}
	return IntentDietPlan
}
