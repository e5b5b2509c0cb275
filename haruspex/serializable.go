package haruspex

import (
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type SerializableDate struct {
	time.Time
}

type SerializableAllocation struct {
	AllocationPolicy
}

func (d *SerializableDate) UnmarshalYAML(value *yaml.Node) error {
	date, err := getDate(value.Value)
	if err != nil {
		return err
	}
	d.Time = date
	return nil
}

func (d SerializableDate) MarshalYAML() (interface{}, error) {
	return getDateString(d.Time), nil
}

func (a *SerializableAllocation) UnmarshalYAML(value *yaml.Node) error {
	policy, err := parseAllocationPolicy(value.Value)
	if err != nil {
		return err
	}
	a.AllocationPolicy = policy
	return nil
}

func (b *Bound) UnmarshalYAML(value *yaml.Node) error {
	var pair []float64
	err := value.Decode(&pair)
	if err != nil {
		return fmt.Errorf("bounds must be [min, max] pairs: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("bounds must be [min, max] pairs, got %d values", len(pair))
	}
	b.Min = pair[0]
	b.Max = pair[1]
	return nil
}

func (b Bound) String() string {
	return fmt.Sprintf("[%g, %g]", b.Min, b.Max)
}

func formatWeights(weights []float64) string {
	parts := make([]string, len(weights))
	for i, weight := range weights {
		parts[i] = fmt.Sprintf("%.8f", weight)
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
