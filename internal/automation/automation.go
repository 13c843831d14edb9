package automation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/san-kum/cmctl/internal/channel"
	"github.com/san-kum/cmctl/internal/storage"
	"gopkg.in/yaml.v3"
)

// Scenario is a scripted sequence of commands sent to the GUI process.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []Step `yaml:"steps"`
}

// Step is one command. TimeoutMs follows the console convention: -1 blocks,
// 0 does not wait, anything else bounds the wait. Unset means block.
type Step struct {
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	TimeoutMs *int     `yaml:"timeout_ms"`
	Expect    *string  `yaml:"expect"`
	Status    string   `yaml:"status"`
	Repeat    int      `yaml:"repeat"`
	Pause     string   `yaml:"pause"`
}

func (s Step) timeout() channel.Timeout {
	if s.TimeoutMs == nil {
		return channel.WaitForever
	}
	return channel.TimeoutFromMillis(*s.TimeoutMs)
}

// LoadScenario loads a scenario from a YAML file
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseScenario(data)
}

// ParseScenario decodes and checks a scenario.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, err
	}

	for i, step := range scenario.Steps {
		if _, err := channel.ParseCommand(step.Command, step.Args); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
		if step.Pause != "" {
			if _, err := time.ParseDuration(step.Pause); err != nil {
				return nil, fmt.Errorf("step %d: pause: %w", i+1, err)
			}
		}
		if step.Status != "" && !validStatus(step.Status) {
			return nil, fmt.Errorf("step %d: unknown status %q", i+1, step.Status)
		}
	}
	return &scenario, nil
}

// RunScenario sends every step through sender and records the outcome.
// Mismatched expectations do not stop the run; a cancelled context does.
func RunScenario(ctx context.Context, scenario *Scenario, sender channel.Sender, w io.Writer) ([]storage.Entry, error) {
	if w == nil {
		w = io.Discard
	}
	results := make([]storage.Entry, 0, len(scenario.Steps))

	index := 0
	for i, step := range scenario.Steps {
		cmd, err := channel.ParseCommand(step.Command, step.Args)
		if err != nil {
			return results, fmt.Errorf("step %d: %w", i+1, err)
		}

		repeat := max(step.Repeat, 1)
		for r := 0; r < repeat; r++ {
			if err := ctx.Err(); err != nil {
				return results, err
			}
			index++
			fmt.Fprintf(w, "Running step %d/%d: %s\n", i+1, len(scenario.Steps), channel.Format(cmd))

			start := time.Now()
			res := sender.Send(ctx, cmd, step.timeout())
			elapsed := time.Since(start)

			results = append(results, storage.Entry{
				Index:     index,
				Command:   channel.Format(cmd),
				Status:    res.Status.String(),
				Value:     res.Value,
				ElapsedMs: float64(elapsed.Microseconds()) / 1000,
				Passed:    step.check(res),
			})

			if step.Pause != "" {
				d, _ := time.ParseDuration(step.Pause)
				select {
				case <-ctx.Done():
					return results, ctx.Err()
				case <-time.After(d):
				}
			}
		}
	}

	return results, nil
}

func (s Step) check(res channel.Result) bool {
	want := s.Status
	if want == "" {
		want = channel.StatusOK.String()
	}
	if !strings.EqualFold(res.Status.String(), want) {
		return false
	}
	return s.Expect == nil || strings.TrimSpace(res.Value) == strings.TrimSpace(*s.Expect)
}

func validStatus(s string) bool {
	for _, st := range []channel.Status{
		channel.StatusOK, channel.StatusRemoteError, channel.StatusConnectionFailed, channel.StatusTimeout,
	} {
		if strings.EqualFold(st.String(), s) {
			return true
		}
	}
	return false
}

// Stats counts passed and failed entries.
func Stats(results []storage.Entry) (passed int, failed int) {
	for _, r := range results {
		if r.Passed {
			passed++
		} else {
			failed++
		}
	}
	return
}
