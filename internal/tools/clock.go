package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/chuanqi87/agent/internal/gateway"
)

const defaultTimezone = "Asia/Shanghai"

// Clock reports the current date and time in a requested format and
// timezone.
type Clock struct {
	now func() time.Time
}

func NewClock() *Clock {
	return &Clock{now: time.Now}
}

func (c *Clock) Name() string { return "current_time" }

func (c *Clock) Description() string {
	return "Get the current date and time."
}

func (c *Clock) Schema() gateway.ToolDef {
	return schemaDef(c.Name(), c.Description(), &gateway.SchemaObject{
		Type: "object",
		Properties: gateway.PropertyList{
			{Name: "format", Spec: gateway.PropertySpec{
				Type: "string",
				Enum: []string{"datetime", "date", "time", "timestamp"},
			}},
			{Name: "timezone", Spec: strProp("IANA timezone name, defaults to " + defaultTimezone)},
		},
		Required: []string{},
	})
}

func (c *Clock) Invoke(_ context.Context, args Arguments) (string, error) {
	tz := args.String("timezone", defaultTimezone)
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return "", fmt.Errorf("current_time: unknown timezone %q", tz)
	}

	now := c.now().In(loc)

	switch args.String("format", "datetime") {
	case "date":
		return now.Format("2006-01-02"), nil
	case "time":
		return now.Format("15:04:05"), nil
	case "timestamp":
		return fmt.Sprintf("%d", now.Unix()), nil
	default:
		return now.Format("2006-01-02 15:04:05 MST"), nil
	}
}
