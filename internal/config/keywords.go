package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoKeywords is returned when the keyword source is empty.
var ErrNoKeywords = errors.New("config: no keywords given")

// ResolveKeywords picks the keyword source: positional args or infile,
// never both.
func ResolveKeywords(args []string, infile string) ([]string, error) {
	switch {
	case len(args) > 0 && infile != "":
		return nil, errors.New("config: give keywords as arguments or --infile, not both")
	case infile != "":
		return ReadKeywords(infile)
	case len(args) > 0:
		var kws []string
		for _, a := range args {
			if kw := strings.TrimSpace(a); kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) == 0 {
			return nil, ErrNoKeywords
		}
		return kws, nil
	default:
		return nil, ErrNoKeywords
	}
}

// ReadKeywords reads one keyword per line from path.
func ReadKeywords(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("config: %q does not exist", path)
		}
		return nil, fmt.Errorf("config: %w", err)
	}
	defer f.Close()

	kws, err := ParseKeywords(f)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if len(kws) == 0 {
		return nil, ErrNoKeywords
	}
	return kws, nil
}

// ParseKeywords trims each line and skips blank ones. A leading UTF-8 BOM
// is dropped.
func ParseKeywords(r io.Reader) ([]string, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var kws []string
	first := true
	for sc.Scan() {
		line := sc.Text()
		if first {
			line = strings.TrimPrefix(line, "\ufeff")
			first = false
		}
		if kw := strings.TrimSpace(line); kw != "" {
			kws = append(kws, kw)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return kws, nil
}
