package coach

import (
	"fmt"
	"strings"

	"FitPulse_V0.1/internal/intent"
	"FitPulse_V0.1/internal/nutrition"
)

// systemPromptTemplate is the coach persona. Looked-up nutrition
// numbers must be reproduced verbatim, never estimated.
const systemPromptTemplate = `You are an expert fitness and nutrition coach named %s.

Your capabilities:
- Create personalized workout plans based on fitness level and goals
- Provide evidence-based nutrition advice and meal planning
- Calculate calories and macronutrients for foods and recipes
- Track user progress over time and adjust recommendations
- Motivate and encourage users on their fitness journey

CRITICAL INSTRUCTION FOR NUTRITION QUERIES:
When you receive nutrition data from the API tools, you MUST use those EXACT numbers in your response.
DO NOT use your own knowledge or estimates when API data is provided.
The API data is always accurate and should be presented exactly as given.

Guidelines:
- Always prioritize safety and proper form
- Recommend consulting healthcare professionals for medical concerns
- Provide specific, actionable advice with clear instructions
- Be encouraging and positive while being realistic
- Ask clarifying questions when needed

When users ask about:
- Workouts: Use the exercise database to create structured plans
- Nutrition: ALWAYS use the exact numbers from API data when provided
- Progress: Reference their history and celebrate improvements

Be conversational, friendly, and professional.`

// Per-intent system prompt addenda.
const (
	dietPlanAddendum = `

For diet plan requests: ask clarifying questions about goals, restrictions and daily routine before committing to a full plan, and never fabricate calorie counts you were not given.`

	workoutAddendum = `

For workout requests: confirm the user's fitness level, goals and available equipment before detailing a full plan.`
)

func systemPrompt(name string, it intent.Intent) string {
	prompt := fmt.Sprintf(systemPromptTemplate, name)
	switch it {
	case intent.IntentDietPlan:
		prompt += dietPlanAddendum
	case intent.IntentWorkout:
		prompt += workoutAddendum
	}
	return prompt
}

func profileSummary(fitnessLevel string, goals, restrictions []string, interactions int) string {
	goalText := strings.Join(goals, ", ")
	if goalText == "" {
		goalText = "Not set"
	}
	restrictionText := strings.Join(restrictions, ", ")
	if restrictionText == "" {
		restrictionText = "None"
	}

	return fmt.Sprintf(`User Profile:
- Fitness Level: %s
- Goals: %s
- Restrictions: %s
- Interactions: %d`, fitnessLevel, goalText, restrictionText, interactions)
}

// User-facing advisory chunks for the nutrition branch.
const (
	compoundQueryTip = "\n💡 **Tip:** For the most accurate nutrition data, I recommend asking about each food separately. However, I'll do my best with your combined query!\n\n"

	compoundQueryApology = "\n⚠️ I had trouble getting accurate data for multiple foods at once. Try asking about each food separately for better results!\n\n"

	technicalDifficulties = "\n[I'm experiencing technical difficulties. Please try again in a moment.]\n"
)

// formatNutritionBlock renders lookup results as an authoritative data
// block the model is told to quote verbatim.
func formatNutritionBlock(foods []nutrition.FoodNutrient) string {
	var b strings.Builder
	b.WriteString("===== NUTRITION DATA FROM NUTRITIONIX API =====\n")
	b.WriteString("YOU MUST USE THESE EXACT NUMBERS IN YOUR RESPONSE.\n")
	b.WriteString("DO NOT ESTIMATE OR USE YOUR OWN KNOWLEDGE.\n\n")

	for _, food := range foods {
		fmt.Fprintf(&b, "Food: %s\n", food.Name)
		fmt.Fprintf(&b, "Serving Size: %s\n", food.Serving)
		fmt.Fprintf(&b, "Calories: %.1f kcal\n", food.Calories)
		fmt.Fprintf(&b, "Protein: %.1fg\n", food.Protein)
		fmt.Fprintf(&b, "Carbohydrates: %.1fg\n", food.Carbs)
		fmt.Fprintf(&b, "Fat: %.1fg\n", food.Fat)
		if food.Fiber > 0 {
			fmt.Fprintf(&b, "Fiber: %.1fg\n", food.Fiber)
		}
		if food.Sugar > 0 {
			fmt.Fprintf(&b, "Sugar: %.1fg\n", food.Sugar)
		}
		b.WriteString("\n")
	}

	b.WriteString("===== END OF API DATA =====\n")
	b.WriteString("Present these numbers EXACTLY as shown above in your response to the user.\n")
	return b.String()
}

func formatWorkoutBlock(serializedPlan string) string {
	return "===== WORKOUT PLAN FROM EXERCISE DATABASE =====\n" + serializedPlan + "\n===== END OF WORKOUT DATA ====="
}
