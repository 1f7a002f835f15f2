package report

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// Score is a 0-100 integer metric. Decoding accepts integers, floats and
// numeric strings, rounds to the nearest integer and clamps to [0,100].
// Anything else decodes as 0 rather than failing the whole report.
type Score int

func (s *Score) UnmarshalJSON(b []byte) error {
	v, ok := decodeNumber(b)
	if !ok {
		*s = 0
		return nil
	}
	*s = ClampScore(v)
	return nil
}

// ClampScore rounds v and clamps it into [0,100].
func ClampScore(v float64) Score {
	if math.IsNaN(v) {
		return 0
	}
	v = math.Round(v)
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return Score(v)
}

// Number is a free-form numeric field (prices, rates, counts). Like Score
// it tolerates numeric strings and decodes garbage as 0.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	v, ok := decodeNumber(b)
	if !ok {
		*n = 0
		return nil
	}
	*n = Number(v)
	return nil
}

func decodeNumber(b []byte) (float64, bool) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return 0, false
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return 0, false
		}
		s = strings.TrimSuffix(strings.TrimSpace(s), "%")
		v, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", ""), 64)
		return v, err == nil
	}
	v, err := strconv.ParseFloat(string(b), 64)
	return v, err == nil
}

// Polarity states which end of a score is the risky one.
type Polarity int

const (
	HigherIsWorse Polarity = iota
	HigherIsBetter
)

func (p Polarity) String() string {
	if p == HigherIsBetter {
		return "higher is better"
	}
	return "higher is worse"
}

// FieldPolarity is fixed per risk_analysis field name. Any producer of a
// report, including the fallback, must keep to it.
var FieldPolarity = map[string]Polarity{
	"overall_score":         HigherIsWorse,
	"buying_risk":           HigherIsWorse,
	"renting_risk":          HigherIsWorse,
	"flood_risk":            HigherIsWorse,
	"crime_rate":            HigherIsWorse,
	"environmental_hazards": HigherIsWorse,
	"noise_data":            HigherIsWorse,
	"light_pollution":       HigherIsWorse,
	"air_quality":           HigherIsBetter,
	"amenities":             HigherIsBetter,
	"transportation":        HigherIsBetter,
	"neighbourhood":         HigherIsBetter,
	"growth_potential":      HigherIsBetter,
	"political_stability":   HigherIsBetter,
}

// Concern reports whether score sits on the risky side of its field.
func Concern(field string, score Score) bool {
	if FieldPolarity[field] == HigherIsBetter {
		return score <= 40
	}
	return score >= 60
}
