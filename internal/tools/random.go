package tools

import (
	"context"
	"fmt"
	"math/rand"
	"strconv"
	"strings"

	"github.com/chuanqi87/agent/internal/gateway"
)

const maxRandomCount = 10

// RandomNumber generates uniformly distributed integers in a
// caller-chosen range.
type RandomNumber struct {
	intn func(n int) int
}

func NewRandomNumber() *RandomNumber {
	return &RandomNumber{intn: rand.Intn}
}

func (r *RandomNumber) Name() string { return "random_number" }

func (r *RandomNumber) Description() string {
	return "Generate random integers within a range."
}

func (r *RandomNumber) Schema() gateway.ToolDef {
	return schemaDef(r.Name(), r.Description(), &gateway.SchemaObject{
		Type: "object",
		Properties: gateway.PropertyList{
			{Name: "count", Spec: intProp("How many numbers to generate, at most 10")},
			{Name: "min", Spec: intProp("Lower bound, inclusive")},
			{Name: "max", Spec: intProp("Upper bound, inclusive")},
		},
		Required: []string{},
	})
}

func (r *RandomNumber) Invoke(_ context.Context, args Arguments) (string, error) {
	count := args.Int("count", 1)
	min := args.Int("min", 1)
	max := args.Int("max", 100)

	if count < 1 || count > maxRandomCount {
		return "", fmt.Errorf("random_number: count must be between 1 and %d", maxRandomCount)
	}
	if min > max {
		return "", fmt.Errorf("random_number: min %d exceeds max %d", min, max)
	}

	numbers := make([]string, count)
	for i := range numbers {
		numbers[i] = strconv.Itoa(min + r.intn(max-min+1))
	}

	return strings.Join(numbers, ", "), nil
}
