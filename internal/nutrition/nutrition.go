/*
Package nutrition wraps the Nutritionix natural-language nutrients
endpoint. A single lookup either yields normalized per-food nutrient
records or a typed error; no retries are performed.
*/
package nutrition

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog/log"
)

const (
	defaultBaseURL = "https://trackapi.nutritionix.com"
	lookupPath     = "/v2/natural/nutrients"
	requestTimeout = 10 * time.Second
)

// ErrNoFoodFound is returned when the service answers successfully but
// matches no food. An empty result is an error, not an empty success.
var ErrNoFoodFound = errors.New("no food data found")

// APIError reports a non-200 rejection from the nutrition service.
type APIError struct {
	StatusCode int
}

func (e *APIError) Error() string {
	return fmt.Sprintf("nutrition API error %d", e.StatusCode)
}

// MalformedResponseError reports an undecodable 200 payload.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed nutrition response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error { return e.Err }

// FoodNutrient is one matched food item with its nutrient values, all
// rounded to one decimal place.
type FoodNutrient struct {
	Name               string  `json:"name"`
	Serving            string  `json:"serving"`
	ServingWeightGrams float64 `json:"serving_weight_grams"`
	Calories           float64 `json:"calories"`
	Protein            float64 `json:"protein"`
	Carbs              float64 `json:"carbs"`
	Fat                float64 `json:"fat"`
	Fiber              float64 `json:"fiber"`
	Sugar              float64 `json:"sugar"`
}

// Client calls the nutrition lookup endpoint.
type Client struct {
	baseURL string
	appID   string
	appKey  string
	client  *http.Client
}

// NewClient reads the NUTRITIONIX_APP_ID / NUTRITIONIX_API_KEY
// credentials from the environment.
func NewClient() *Client {
	return &Client{
		baseURL: defaultBaseURL,
		appID:   os.Getenv("NUTRITIONIX_APP_ID"),
		appKey:  os.Getenv("NUTRITIONIX_API_KEY"),
		client:  &http.Client{Timeout: requestTimeout},
	}
}

// NewClientWith builds a client against an explicit endpoint. Used by
// tests and alternative deployments.
func NewClientWith(baseURL, appID, appKey string) *Client {
	return &Client{
		baseURL: baseURL,
		appID:   appID,
		appKey:  appKey,
		client:  &http.Client{Timeout: requestTimeout},
	}
}

type lookupRequest struct {
	Query string `json:"query"`
}

type lookupResponse struct {
	Foods []struct {
		FoodName           string  `json:"food_name"`
		ServingQty         float64 `json:"serving_qty"`
		ServingUnit        string  `json:"serving_unit"`
		ServingWeightGrams float64 `json:"serving_weight_grams"`
		Calories           float64 `json:"nf_calories"`
		Protein            float64 `json:"nf_protein"`
		Carbs              float64 `json:"nf_total_carbohydrate"`
		Fat                float64 `json:"nf_total_fat"`
		Fiber              float64 `json:"nf_dietary_fiber"`
		Sugar              float64 `json:"nf_sugars"`
	} `json:"foods"`
}

// Lookup translates a free-text food query into per-food nutrient
// records. Failures surface immediately; the caller decides how to
// degrade.
func (c *Client) Lookup(ctx context.Context, query string) ([]FoodNutrient, error) {
	if c.appID == "" || c.appKey == "" {
		return nil, errors.New("nutrition API keys not configured")
	}

	body, err := json.Marshal(lookupRequest{Query: query})
	if err != nil {
		return nil, fmt.Errorf("marshal nutrition request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+lookupPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create nutrition request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-app-id", c.appID)
	req.Header.Set("x-app-key", c.appKey)

	log.Info().Str("query", query).Msg("Calling nutrition API")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("nutrition request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decoding below.
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNoFoodFound
	default:
		return nil, &APIError{StatusCode: resp.StatusCode}
	}

	var payload lookupResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, &MalformedResponseError{Err: err}
	}

	if len(payload.Foods) == 0 {
		return nil, ErrNoFoodFound
	}

	foods := make([]FoodNutrient, 0, len(payload.Foods))
	for _, f := range payload.Foods {
		name := f.FoodName
		if name == "" {
			name = "Unknown"
		}

		serving := strings.TrimSpace(fmt.Sprintf("%s %s", formatQty(f.ServingQty), f.ServingUnit))

		foods = append(foods, FoodNutrient{
			Name:               name,
			Serving:            serving,
			ServingWeightGrams: round1(f.ServingWeightGrams),
			Calories:           round1(f.Calories),
			Protein:            round1(f.Protein),
			Carbs:              round1(f.Carbs),
			Fat:                round1(f.Fat),
			Fiber:              round1(f.Fiber),
			Sugar:              round1(f.Sugar),
		})
	}

	log.Info().Int("foods", len(foods)).Msg("Nutrition lookup succeeded")
	return foods, nil
}

// round1 rounds to one decimal place for presentation.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// formatQty prints "3" for whole quantities and "1.5" otherwise. A
// missing quantity defaults to 1 serving.
func formatQty(qty float64) string {
	if qty == 0 {
		qty = 1
	}
	if qty == math.Trunc(qty) {
		return fmt.Sprintf("%d", int64(qty))
	}
	return fmt.Sprintf("%g", qty)
}
