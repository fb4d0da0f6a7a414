package itinerary

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const planJSON = `{
  "itinerary": [
    {"day": "Day 1", "city": "Paris", "morning": "Louvre", "afternoon": "Seine walk",
     "evening": "Bistro", "accommodation": "Hotel Lutetia", "meals": "Croissant", "estimated_cost": "€120"}
  ],
  "total_estimated_cost": "$500",
  "travel_tips": ["Book museums ahead"],
  "packing_list": ["Umbrella"],
  "emergency_contacts": {"local_emergency": "112", "embassy": "+33 1 40 50 71 71", "hotel": "+33 1 49 54 46 00"}
}`

func TestParsePlan(t *testing.T) {
	cases := map[string]string{
		"plain":          planJSON,
		"fenced":         "```json\n" + planJSON + "\n```",
		"bare fence":     "```\n" + planJSON + "```",
		"trailing comma": `{"itinerary":[{"day":"Day 1","city":"Paris","estimated_cost":"₹100",},],"total_estimated_cost":"₹100",}`,
	}
	for name, reply := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePlan(reply)
			require.NoError(t, err)
			require.Len(t, p.Itinerary, 1)
			assert.Equal(t, "Paris", p.Itinerary[0].City)
		})
	}
}

func TestParsePlan_Failures(t *testing.T) {
	_, err := ParsePlan("Sorry, I can't help with that.")
	require.ErrorContains(t, err, "parse plan")

	_, err = ParsePlan(`{"itinerary": []}`)
	require.EqualError(t, err, "parse plan: itinerary is empty")
}

func TestParsePlan_NumericCost(t *testing.T) {
	p, err := ParsePlan(`{"itinerary":[{"day":"Day 1","estimated_cost":2500}],"total_estimated_cost":null}`)
	require.NoError(t, err)
	assert.Equal(t, Cost("2500"), p.Itinerary[0].EstimatedCost)
	assert.Equal(t, Cost(""), p.TotalEstimatedCost)
}

func TestNormalizeCost(t *testing.T) {
	cases := []struct {
		in, want Cost
	}{
		{"", "₹0"},
		{"₹2,500", "₹2,500"},
		{"2,500", "₹2500"},
		{"$100", "₹8500"},
		{"€12.5", "₹1150"},
		{"£10", "₹1080"},
		{"1500 per night", "₹1500"},
		{"about ₹3000", "₹0"},
		{"free", "₹0"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeCost(tc.in), "input %q", tc.in)
	}
}

func TestPlanNormalizeCosts(t *testing.T) {
	p, err := ParsePlan(planJSON)
	require.NoError(t, err)
	p.NormalizeCosts()

	assert.Equal(t, Cost("₹11040"), p.Itinerary[0].EstimatedCost)
	assert.Equal(t, Cost("₹42500"), p.TotalEstimatedCost)
}
