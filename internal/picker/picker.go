// Package picker asks the user to choose among several loaded models.
package picker

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/agnivade/levenshtein"
)

// DefaultMaxDistance is how many edits a typed name may be away from a
// candidate and still select it.
const DefaultMaxDistance = 2

// None never selects anything.
type None struct{}

func (None) Pick(context.Context, []string) (string, error) { return "", nil }

// Line prompts on Out with a numbered list and reads one answer from In.
// The answer may be a number, a name, or a name with small typos. An empty
// answer, end of input, or an answer that matches nothing selects nothing.
type Line struct {
	In          io.Reader
	Out         io.Writer
	MaxDistance int
}

func (l Line) Pick(ctx context.Context, candidates []string) (string, error) {
	if len(candidates) == 0 {
		return "", nil
	}

	fmt.Fprintln(l.Out, "Several models are loaded. Select one to activate:")
	for i, name := range candidates {
		fmt.Fprintf(l.Out, "  %d) %s\n", i+1, name)
	}
	fmt.Fprint(l.Out, "> ")

	answer, err := readLine(ctx, l.In)
	if err != nil {
		return "", err
	}

	maxDist := l.MaxDistance
	if maxDist <= 0 {
		maxDist = DefaultMaxDistance
	}
	choice := Match(answer, candidates, maxDist)
	if choice == "" && strings.TrimSpace(answer) != "" {
		fmt.Fprintf(l.Out, "no model matches %q\n", strings.TrimSpace(answer))
	}
	return choice, nil
}

// Match resolves an answer against candidates. Ties between equally close
// fuzzy matches select nothing.
func Match(answer string, candidates []string, maxDist int) string {
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return ""
	}
	if n, err := strconv.Atoi(answer); err == nil {
		if n >= 1 && n <= len(candidates) {
			return candidates[n-1]
		}
		return ""
	}

	lower := strings.ToLower(answer)
	best, bestDist, tie := "", maxDist+1, false
	for _, c := range candidates {
		if c == answer {
			return c
		}
		d := levenshtein.ComputeDistance(lower, strings.ToLower(c))
		switch {
		case d < bestDist:
			best, bestDist, tie = c, d, false
		case d == bestDist:
			tie = true
		}
	}
	if tie {
		return ""
	}
	return best
}

func readLine(ctx context.Context, r io.Reader) (string, error) {
	type line struct {
		text string
		err  error
	}
	ch := make(chan line, 1)
	go func() {
		text, err := bufio.NewReader(r).ReadString('\n')
		if err == io.EOF {
			err = nil
		}
		ch <- line{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case l := <-ch:
		return l.text, l.err
	}
}
