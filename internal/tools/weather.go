package tools

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WeatherProvider answers weather questions for a city
type WeatherProvider interface {
	Weather(ctx context.Context, city string) (string, error)
}

// StaticWeather returns a fixed forecast. Used for demos and tests.
type StaticWeather struct{}

func (StaticWeather) Weather(_ context.Context, city string) (string, error) {
	return fmt.Sprintf("%s的天气是晴天，温度25°C，适合出行！", city), nil
}

const DefaultWttrURL = "https://wttr.in"

// WttrWeather queries wttr.in for a one-line report
type WttrWeather struct {
	BaseURL string
	Client  *http.Client
}

func NewWttrWeather(baseURL string) *WttrWeather {
	if baseURL == "" {
		baseURL = DefaultWttrURL
	}
	return &WttrWeather{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (w *WttrWeather) Weather(ctx context.Context, city string) (string, error) {
	u := fmt.Sprintf("%s/%s?format=3", w.BaseURL, url.PathEscape(city))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	res, err := w.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("wttr request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4096))
	if err != nil {
		return "", fmt.Errorf("wttr read: %w", err)
	}
	if res.StatusCode != http.StatusOK {
		return "", fmt.Errorf("wttr status %d", res.StatusCode)
	}
	return strings.TrimSpace(string(body)), nil
}

type WeatherArgs struct {
	City string `json:"city" jsonschema:"name of the city, e.g. 北京 or Shanghai"`
}

// WeatherTool looks up the weather for a city through p
func WeatherTool(p WeatherProvider) Tool {
	return MustNewTool("get_weather", "查询指定城市的天气信息",
		func(ctx context.Context, args WeatherArgs) (string, error) {
			city := strings.TrimSpace(args.City)
			if city == "" {
				return "", errors.New("city is required")
			}
			return p.Weather(ctx, city)
		})
}
