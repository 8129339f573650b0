package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/intentgraph/intentgraph/internal/agent"
)

var weatherKeywords = []string{
	"天气", "气温", "温度", "下雨", "下雪", "晴", "阴天", "刮风", "台风", "雾霾", "湿度", "预报",
	"weather", "temperature", "forecast", "rain", "snow", "sunny", "humidity", "wind",
}

var mathKeywords = []string{
	"计算", "算一下", "等于多少", "加", "减", "乘", "除以", "平方", "开方", "次方", "求和",
	"calculate", "compute", "sum of", "plus", "minus", "times", "divided by", "square root", "power of",
}

// digits joined by an arithmetic operator, e.g. "123 + 456" or "2**10"
var arithmeticPattern = regexp.MustCompile(`\d\s*(\*\*|[+\-*/%×÷])\s*[\d(]`)

// RoutingResult contains the keyword scores behind a classification
type RoutingResult struct {
	Intent       agent.Intent
	Confidence   float64
	WeatherScore int
	MathScore    int
	Reasoning    string
}

// KeywordClassifier routes messages by keyword scoring, without an oracle
// call. Messages with no keyword hit go to chat.
type KeywordClassifier struct{}

func NewKeywordClassifier() *KeywordClassifier {
	return &KeywordClassifier{}
}

// Route analyses the prompt and returns the best matching intent
func (r *KeywordClassifier) Route(prompt string) RoutingResult {
	lower := strings.ToLower(prompt)

	weatherScore := 0
	mathScore := 0

	for _, kw := range weatherKeywords {
		if strings.Contains(lower, kw) {
			weatherScore++
		}
	}
	for _, kw := range mathKeywords {
		if strings.Contains(lower, kw) {
			mathScore++
		}
	}
	if arithmeticPattern.MatchString(lower) {
		mathScore += 2
	}

	total := weatherScore + mathScore
	if total == 0 {
		return RoutingResult{
			Intent:     agent.IntentChat,
			Confidence: 0.5,
			Reasoning:  "no strong keywords, defaulting to chat",
		}
	}

	if weatherScore > mathScore {
		return RoutingResult{
			Intent:       agent.IntentWeather,
			Confidence:   float64(weatherScore) / float64(total),
			WeatherScore: weatherScore,
			MathScore:    mathScore,
			Reasoning:    "prompt contains weather-related keywords",
		}
	}

	return RoutingResult{
		Intent:       agent.IntentMath,
		Confidence:   float64(mathScore) / float64(total),
		WeatherScore: weatherScore,
		MathScore:    mathScore,
		Reasoning:    "prompt contains arithmetic or calculation keywords",
	}
}

// Classify implements agent.Classifier. It never fails.
func (r *KeywordClassifier) Classify(_ context.Context, text string) (agent.Classification, error) {
	res := r.Route(text)
	return agent.Classification{
		Intent:   res.Intent,
		Raw:      fmt.Sprintf("keyword weather=%d math=%d", res.WeatherScore, res.MathScore),
		Fallback: res.WeatherScore+res.MathScore == 0,
	}, nil
}

var _ agent.Classifier = (*KeywordClassifier)(nil)
