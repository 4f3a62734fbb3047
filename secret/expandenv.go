package secret

import (
	"fmt"
	"os"
	"regexp"
	"slices"
	"strings"
)

var bracedVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ExpandEnv expands $NAME and ${NAME} in s. Every braced variable must be
// set, otherwise the names of all missing ones are reported. $$ is a
// literal dollar sign.
func ExpandEnv(s string) (string, error) {
	const literalDollar = "\x00customs-dollar\x00"
	s = strings.ReplaceAll(s, "$$", literalDollar)

	var missing []string
	for _, m := range bracedVar.FindAllStringSubmatch(s, -1) {
		if _, ok := os.LookupEnv(m[1]); !ok && !slices.Contains(missing, m[1]) {
			missing = append(missing, m[1])
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s", ErrMissingEnv, strings.Join(missing, ", "))
	}

	return strings.ReplaceAll(os.ExpandEnv(s), literalDollar, "$"), nil
}
