package parser

import "strings"

var ratingTokens = map[string]int{
	"One":   1,
	"Two":   2,
	"Three": 3,
	"Four":  4,
	"Five":  5,
}

// DecodeRating converts the star-rating class token to a 1-5 score.
func DecodeRating(token string) (int, error) {
	token = strings.TrimSpace(token)
	if score, ok := ratingTokens[token]; ok {
		return score, nil
	}
	return 0, &ParseError{Kind: UnknownRatingToken, Field: "ratingScore", Value: token}
}
