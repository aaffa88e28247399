package service

import (
	"fmt"
	"strings"
)

const (
	kgPerLb = 0.45359237
	cmPerIn = 2.54
)

// ToKg converts a weight in kg or lb to kg.
func ToKg(value float64, unit string) (float64, error) {
	if value <= 0 {
		return 0, invalid("weight must be > 0")
	}
	switch normalizeUnit(unit, "kg") {
	case "kg":
		return value, nil
	case "lb", "lbs":
		return value * kgPerLb, nil
	default:
		return 0, invalid("invalid weight unit %q (use kg or lb)", unit)
	}
}

// FromKg converts kg to the display unit.
func FromKg(kg float64, unit string) (float64, error) {
	switch normalizeUnit(unit, "kg") {
	case "kg":
		return kg, nil
	case "lb", "lbs":
		return kg / kgPerLb, nil
	default:
		return 0, fmt.Errorf("invalid weight unit %q (use kg or lb)", unit)
	}
}

// ToCm converts a height in cm or in to cm.
func ToCm(value float64, unit string) (float64, error) {
	if value <= 0 {
		return 0, invalid("height must be > 0")
	}
	switch normalizeUnit(unit, "cm") {
	case "cm":
		return value, nil
	case "in":
		return value * cmPerIn, nil
	default:
		return 0, invalid("invalid height unit %q (use cm or in)", unit)
	}
}

func normalizeUnit(unit, fallback string) string {
	u := strings.ToLower(strings.TrimSpace(unit))
	if u == "" {
		return fallback
	}
	return u
}
