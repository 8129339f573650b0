package service_test

import (
	"context"
	"testing"

	"github.com/intentgraph/intentgraph/internal/agent"
	"github.com/intentgraph/intentgraph/internal/service"
)

func TestKeywordClassifier_Weather(t *testing.T) {
	r := service.NewKeywordClassifier()

	prompts := []string{
		"北京今天天气怎么样？",
		"上海明天会下雨吗",
		"what's the weather in Tokyo",
		"深圳现在气温多少度",
	}
	for _, p := range prompts {
		res := r.Route(p)
		if res.Intent != agent.IntentWeather {
			t.Errorf("expected weather for %q, got %q (confidence %.2f: %s)",
				p, res.Intent, res.Confidence, res.Reasoning)
		}
	}
}

func TestKeywordClassifier_Math(t *testing.T) {
	r := service.NewKeywordClassifier()

	prompts := []string{
		"帮我计算一下 123 + 456 等于多少？",
		"2**10",
		"3×7是多少",
		"calculate the square root of 144",
		"15 除以 3",
	}
	for _, p := range prompts {
		res := r.Route(p)
		if res.Intent != agent.IntentMath {
			t.Errorf("expected math for %q, got %q (confidence %.2f: %s)",
				p, res.Intent, res.Confidence, res.Reasoning)
		}
	}
}

func TestKeywordClassifier_NoKeywords(t *testing.T) {
	r := service.NewKeywordClassifier()

	res := r.Route("给我讲个笑话")
	if res.Intent != agent.IntentChat {
		t.Errorf("default should be chat, got %s", res.Intent)
	}
	if res.Reasoning == "" {
		t.Error("reasoning should not be empty")
	}

	cl, err := r.Classify(context.Background(), "hello world")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cl.Intent != agent.IntentChat || !cl.Fallback {
		t.Errorf("expected chat fallback, got %+v", cl)
	}
}

func TestKeywordClassifier_Confidence(t *testing.T) {
	r := service.NewKeywordClassifier()
	res := r.Route("北京天气预报，温度多少")
	if res.Confidence <= 0 || res.Confidence > 1 {
		t.Errorf("confidence out of range: %.2f", res.Confidence)
	}
	if res.WeatherScore < 2 {
		t.Errorf("expected several weather hits, got %d", res.WeatherScore)
	}
}
