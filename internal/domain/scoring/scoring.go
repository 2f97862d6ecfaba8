// Package scoring holds the numeric rules shared by the stores and the
// contract for the text-generation reviewer that produces machine scores.
package scoring

import (
	"errors"
	"math"
	"regexp"
	"strconv"
)

// Rating bounds for submission scores.
const (
	MinRating = 0
	MaxRating = 10
)

// ErrRatingOutOfRange is returned by ValidateRating.
var ErrRatingOutOfRange = errors.New("score must be a number in [0, 10]")

// Average returns the mean of scores rounded to 2 decimal places, or nil
// when scores is empty.
func Average(scores []float64) *float64 {
	if len(scores) == 0 {
		return nil
	}
	var sum float64
	for _, s := range scores {
		sum += s
	}
	avg := Round2(sum / float64(len(scores)))
	return &avg
}

// Round2 rounds x half away from zero to 2 decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// ValidateRating reports whether score is a finite number in [0, 10].
func ValidateRating(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) || score < MinRating || score > MaxRating {
		return ErrRatingOutOfRange
	}
	return nil
}

var firstNumber = regexp.MustCompile(`\d+(?:\.\d+)?`)

// ExtractScore returns the first decimal number in feedback when it is a
// valid rating. Feedback without such a number yields false.
func ExtractScore(feedback string) (float64, bool) {
	m := firstNumber.FindString(feedback)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(m, 64)
	if err != nil || ValidateRating(v) != nil {
		return 0, false
	}
	return v, true
}
