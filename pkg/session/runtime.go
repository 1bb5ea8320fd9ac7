package session

import (
	"fmt"
	"regexp"
	"strconv"
)

// php -v prints e.g. "PHP 8.2.12 (cli) (built: ...)" on its first line.
var runtimeVersionRe = regexp.MustCompile(`PHP (\d+)\.(\d+)`)

// parseRuntimeVersion extracts the numeric major.minor version from the
// runtime's version banner.
func parseRuntimeVersion(banner string) (int, int, error) {
	m := runtimeVersionRe.FindStringSubmatch(banner)
	if m == nil {
		return 0, 0, fmt.Errorf("unrecognized runtime version banner: %q", banner)
	}
	major, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, fmt.Errorf("parse runtime major version: %w", err)
	}
	minor, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, fmt.Errorf("parse runtime minor version: %w", err)
	}
	return major, minor, nil
}
