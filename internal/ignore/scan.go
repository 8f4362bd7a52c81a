package ignore

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// scanRules reads a gitignore-style manifest and compiles each
// significant line into a rule: blank lines and comment lines (#) are
// skipped, trailing whitespace is trimmed, and CRLF line endings are
// tolerated. A line that fails to compile is dropped rather than
// aborting the whole manifest, so one malformed rule doesn't take
// every other rule in the file down with it.
func scanRules(r io.Reader) ([]rule, error) {
	var rules []rule

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		line = strings.TrimRight(line, " \t")

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if rl, err := compileRule(line); err == nil {
			rules = append(rules, rl)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ignore: scan manifest: %w", err)
	}
	return rules, nil
}
