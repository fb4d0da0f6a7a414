package itinerary

import (
	"strings"
	"text/template"

	"github.com/suPer8Hu/tripgen/internal/ai"
)

const systemPrompt = "You are an expert travel planner. You answer with a single JSON document and nothing else."

var plannerPrompt = template.Must(template.New("planner").Funcs(template.FuncMap{"join": joinList}).Parse(`Create a multi-city itinerary.

DESTINATIONS: {{join .Destinations}}
TRIP_DATES: {{.StartDate}} to {{.EndDate}} ({{.TripDays}} days)
BUDGET: {{or .Budget "Not specified"}}
TRAVEL_STYLE: {{or .TravelStyle "Not specified"}}
INTERESTS: {{or (join .Interests) "Not specified"}}
ACCOMMODATION_PREFERENCE: {{or .Accommodation "Not specified"}}
TRANSPORTATION_PREFERENCE: {{or .Transportation "Not specified"}}
SPECIAL_REQUESTS: {{or .SpecialRequests "None"}}

Important:
1. Divide the trip days between the cities in a logical order.
2. Every itinerary day must include the "city" field.
3. All costs must be in Indian Rupees regardless of the destination country.
4. Convert local prices to INR with approximate rates:
   - 1 USD = ₹85
   - 1 EUR = ₹92
   - 1 GBP = ₹108
   - 1 JPY = ₹0.58
   - 1 AUD = ₹56
   - 1 CAD = ₹63
5. Prefix every cost with the ₹ symbol, e.g. "₹2,500".
6. Respond with ONLY valid JSON. No markdown, no backticks, no code blocks.

{
  "itinerary": [
    {
      "day": "Day 1",
      "city": "City Name",
      "morning": "Activity",
      "afternoon": "Activity",
      "evening": "Activity",
      "accommodation": "Hotel",
      "meals": "Breakfast, lunch suggestion",
      "estimated_cost": "₹2,500"
    }
  ],
  "total_estimated_cost": "₹15,000",
  "travel_tips": ["Tip1", "Tip2"],
  "packing_list": ["Item1", "Item2"],
  "emergency_contacts": {
    "local_emergency": "Number",
    "embassy": "Number",
    "hotel": "Number"
  }
}
`))

type promptData struct {
	*Request
	TripDays int
}

func joinList(items []string) string {
	return strings.Join(items, ", ")
}

// Messages renders the chat prompt for r.
func Messages(r *Request) ([]ai.Message, error) {
	days, err := r.Days()
	if err != nil {
		return nil, err
	}
	var b strings.Builder
	if err := plannerPrompt.Execute(&b, promptData{Request: r, TripDays: days}); err != nil {
		return nil, err
	}
	return []ai.Message{
		{Role: ai.RoleSystem, Content: systemPrompt},
		{Role: ai.RoleUser, Content: b.String()},
	}, nil
}
