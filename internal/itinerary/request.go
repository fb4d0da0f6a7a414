// Package itinerary turns a trip request into a day-by-day travel plan
// through an AI chat provider.
package itinerary

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"
)

const (
	DateLayout  = "2006-01-02"
	MaxTripDays = 60
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(err)
	}
	return v
}

// Request is the job payload. Optional fields are omitted from the JSON
// form when empty so absent and empty values hash alike.
type Request struct {
	Destinations    []string `json:"destinations" validate:"required,min=1,max=10,dive,notblank,max=100"`
	StartDate       string   `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate         string   `json:"end_date" validate:"required,datetime=2006-01-02"`
	Budget          string   `json:"budget,omitempty" validate:"max=100"`
	TravelStyle     string   `json:"travel_style,omitempty" validate:"max=100"`
	Interests       []string `json:"interests,omitempty" validate:"max=20,dive,max=100"`
	Accommodation   string   `json:"accommodation,omitempty" validate:"max=100"`
	Transportation  string   `json:"transportation,omitempty" validate:"max=100"`
	SpecialRequests string   `json:"special_requests,omitempty" validate:"max=2000"`
}

// Normalize trims surrounding whitespace and drops blank interests.
func (r *Request) Normalize() {
	for i, d := range r.Destinations {
		r.Destinations[i] = strings.TrimSpace(d)
	}
	r.StartDate = strings.TrimSpace(r.StartDate)
	r.EndDate = strings.TrimSpace(r.EndDate)
	r.Budget = strings.TrimSpace(r.Budget)
	r.TravelStyle = strings.TrimSpace(r.TravelStyle)
	r.Accommodation = strings.TrimSpace(r.Accommodation)
	r.Transportation = strings.TrimSpace(r.Transportation)
	r.SpecialRequests = strings.TrimSpace(r.SpecialRequests)

	interests := r.Interests[:0]
	for _, in := range r.Interests {
		if in = strings.TrimSpace(in); in != "" {
			interests = append(interests, in)
		}
	}
	if len(interests) == 0 {
		interests = nil
	}
	r.Interests = interests
}

func (r *Request) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return fieldError(verrs[0])
		}
		return err
	}

	days, err := r.Days()
	if err != nil {
		return err
	}
	if days < 1 {
		return errors.New("end_date must not be before start_date")
	}
	if days > MaxTripDays {
		return fmt.Errorf("trip must not exceed %d days", MaxTripDays)
	}
	return nil
}

// Days is the trip length, counting both the start and the end date.
func (r *Request) Days() (int, error) {
	start, err := time.Parse(DateLayout, r.StartDate)
	if err != nil {
		return 0, fmt.Errorf("start_date: %w", err)
	}
	end, err := time.Parse(DateLayout, r.EndDate)
	if err != nil {
		return 0, fmt.Errorf("end_date: %w", err)
	}
	return int(end.Sub(start).Hours()/24) + 1, nil
}

func fieldError(fe validator.FieldError) error {
	field := jsonName(fe.StructField())
	switch fe.Tag() {
	case "required", "notblank":
		return fmt.Errorf("%s is required", field)
	case "datetime":
		return fmt.Errorf("%s must be a date in YYYY-MM-DD format", field)
	case "min":
		return fmt.Errorf("%s must have at least %s entries", field, fe.Param())
	case "max":
		return fmt.Errorf("%s exceeds the maximum of %s", field, fe.Param())
	default:
		return fmt.Errorf("%s is invalid", field)
	}
}

var jsonNames = map[string]string{
	"Destinations":    "destinations",
	"StartDate":       "start_date",
	"EndDate":         "end_date",
	"Budget":          "budget",
	"TravelStyle":     "travel_style",
	"Interests":       "interests",
	"Accommodation":   "accommodation",
	"Transportation":  "transportation",
	"SpecialRequests": "special_requests",
}

func jsonName(structField string) string {
	// dive errors report the element, e.g. Destinations[2]
	base, idx, _ := strings.Cut(structField, "[")
	name, ok := jsonNames[base]
	if !ok {
		return structField
	}
	if idx != "" {
		return name + "[" + idx
	}
	return name
}
