package gate

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ppiankov/gitgate/internal/model"
)

// ErrMalformedLine is returned for a pre-receive line that is not
// "<old> <new> <ref>".
var ErrMalformedLine = errors.New("malformed pre-receive line")

// DecideAll authorizes every update read from a pre-receive hook's stdin.
// It reports true only if at least one update was read and all were
// allowed. Unreadable input denies.
func (g *Gate) DecideAll(ctx context.Context, r io.Reader) ([]model.Result, bool) {
	var results []model.Result
	allowed := true

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) != 3 {
			res := g.finish(deny(model.Result{}, fmt.Errorf("%w %d: %q", ErrMalformedLine, lineNum, line)), "")
			results = append(results, res)
			allowed = false
			continue
		}

		res := g.Decide(ctx, fields[2], fields[0], fields[1])
		results = append(results, res)
		if !res.Allowed() {
			allowed = false
		}
	}

	if err := scanner.Err(); err != nil {
		g.log.Error().Err(err).Msg("read pre-receive input")
		return results, false
	}
	if len(results) == 0 {
		return nil, false
	}
	return results, allowed
}
