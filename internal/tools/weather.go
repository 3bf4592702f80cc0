package tools

import (
	"context"
	"fmt"

	"github.com/chuanqi87/agent/internal/gateway"
)

// Weather answers weather queries from a canned city table. A real
// deployment would swap the table for an actual weather API behind the
// same interface.
type Weather struct {
	cities map[string]cityWeather
}

type cityWeather struct {
	Temperature string
	Condition   string
	Humidity    string
}

func NewWeather() *Weather {
	return &Weather{
		cities: map[string]cityWeather{
			"北京": {"15°C", "晴", "45%"},
			"上海": {"18°C", "多云", "60%"},
			"广州": {"25°C", "小雨", "80%"},
			"深圳": {"24°C", "晴", "70%"},
			"杭州": {"16°C", "阴", "55%"},
		},
	}
}

func (w *Weather) Name() string { return "weather" }

func (w *Weather) Description() string {
	return "Look up the current weather for a city."
}

func (w *Weather) Schema() gateway.ToolDef {
	return schemaDef(w.Name(), w.Description(), &gateway.SchemaObject{
		Type: "object",
		Properties: gateway.PropertyList{
			{Name: "city", Spec: strProp("City name")},
		},
		Required: []string{"city"},
	})
}

func (w *Weather) Invoke(_ context.Context, args Arguments) (string, error) {
	city := args.String("city", args.Query())
	if city == "" {
		return "", fmt.Errorf("weather: no city given")
	}

	report, ok := w.cities[city]
	if !ok {
		return fmt.Sprintf("no weather data available for %s", city), nil
	}

	return fmt.Sprintf("%s: %s, %s, humidity %s",
		city, report.Condition, report.Temperature, report.Humidity), nil
}
