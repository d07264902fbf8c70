package console

import (
	"errors"
	"strconv"
	"strings"

	"github.com/bengtfrost/nbkernel/internal/kernelspec"
)

// ErrNoChoice reports that kernel selection ended without a pick.
var ErrNoChoice = errors.New("no kernel selected")

// ChooseKernel prompts for one of the given kernelspecs and returns the
// pick. An empty answer takes the first entry. Used when the notebook's
// metadata does not match an installed kernelspec.
func (c *Console) ChooseKernel(specs []kernelspec.Installed) (kernelspec.Installed, error) {
	if len(specs) == 0 {
		return kernelspec.Installed{}, ErrNoChoice
	}
	if len(specs) == 1 {
		c.printf("Using kernelspec %s (%s)\n", specs[0].Name, specs[0].Spec.DisplayName)
		return specs[0], nil
	}

	c.printf("No installed kernelspec matches this notebook. Pick one:\n")
	for i, inst := range specs {
		c.printf("  %d. %-16s %s (%s)\n", i+1, inst.Name, inst.Spec.DisplayName, inst.Spec.Language)
	}
	for {
		line, ok := c.readLine("Kernel [1]:")
		if !ok {
			return kernelspec.Installed{}, ErrNoChoice
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return specs[0], nil
		}
		n, err := strconv.Atoi(line)
		if err != nil || n < 1 || n > len(specs) {
			c.printf("enter a number between 1 and %d\n", len(specs))
			continue
		}
		return specs[n-1], nil
	}
}
