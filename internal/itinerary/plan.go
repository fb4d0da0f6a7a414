package itinerary

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"
)

type Plan struct {
	Itinerary          []Day             `json:"itinerary"`
	TotalEstimatedCost Cost              `json:"total_estimated_cost"`
	TravelTips         []string          `json:"travel_tips"`
	PackingList        []string          `json:"packing_list"`
	EmergencyContacts  EmergencyContacts `json:"emergency_contacts"`
}

type Day struct {
	Day           string `json:"day"`
	City          string `json:"city"`
	Morning       string `json:"morning"`
	Afternoon     string `json:"afternoon"`
	Evening       string `json:"evening"`
	Accommodation string `json:"accommodation"`
	Meals         string `json:"meals"`
	EstimatedCost Cost   `json:"estimated_cost"`
}

type EmergencyContacts struct {
	LocalEmergency string `json:"local_emergency"`
	Embassy        string `json:"embassy"`
	Hotel          string `json:"hotel"`
}

// Cost is a price as the model wrote it. Bare JSON numbers are accepted.
type Cost string

func (c *Cost) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cost(s)
		return nil
	}
	if bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("cost: %w", err)
	}
	*c = Cost(n.String())
	return nil
}

var (
	fenceRe         = regexp.MustCompile("```(?:json)?\\s*")
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// ParsePlan decodes a model reply. Markdown fences are stripped; a reply
// that still fails to decode gets one repair pass for trailing commas and
// stray back-ticks.
func ParsePlan(reply string) (*Plan, error) {
	text := strings.TrimSpace(fenceRe.ReplaceAllString(reply, ""))

	var p Plan
	err := json.Unmarshal([]byte(text), &p)
	if err != nil {
		fixed := trailingCommaRe.ReplaceAllString(text, "$1")
		fixed = strings.TrimSpace(strings.ReplaceAll(fixed, "`", ""))
		p = Plan{}
		if err2 := json.Unmarshal([]byte(fixed), &p); err2 != nil {
			return nil, fmt.Errorf("parse plan: %w (reply starts %q)", err, head(text, 100))
		}
	}
	if len(p.Itinerary) == 0 {
		return nil, errors.New("parse plan: itinerary is empty")
	}
	return &p, nil
}

// NormalizeCosts rewrites every cost in rupees.
func (p *Plan) NormalizeCosts() {
	for i := range p.Itinerary {
		if p.Itinerary[i].EstimatedCost != "" {
			p.Itinerary[i].EstimatedCost = NormalizeCost(p.Itinerary[i].EstimatedCost)
		}
	}
	if p.TotalEstimatedCost != "" {
		p.TotalEstimatedCost = NormalizeCost(p.TotalEstimatedCost)
	}
}

var leadingNumberRe = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?`)

var toRupees = []struct {
	symbol string
	rate   float64
}{
	{"$", 85},
	{"€", 92},
	{"£", 108},
}

// NormalizeCost converts a dollar, euro or pound amount to rupees at a
// fixed rate. A rupee amount is kept as written, a bare number gets the ₹
// prefix, and anything without a leading number becomes ₹0.
func NormalizeCost(c Cost) Cost {
	s := string(c)
	if s == "" {
		return "₹0"
	}

	cleaned := strings.Map(func(r rune) rune {
		if unicode.Is(unicode.Sc, r) || r == ',' {
			return -1
		}
		return r
	}, s)
	num := leadingNumberRe.FindString(strings.TrimSpace(cleaned))
	if num == "" {
		return "₹0"
	}
	amount, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return "₹0"
	}

	for _, cur := range toRupees {
		if strings.Contains(s, cur.symbol) {
			return Cost("₹" + strconv.FormatFloat(math.Round(amount*cur.rate), 'f', -1, 64))
		}
	}
	if !strings.Contains(s, "₹") {
		return Cost("₹" + strconv.FormatFloat(amount, 'f', -1, 64))
	}
	return c
}

func head(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
