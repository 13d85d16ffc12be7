package media

import (
	"bufio"
	"io"
	"strings"
)

// ParseURLs splits free text into one URL per line. Lines are trimmed, blank
// lines and lines starting with '#' are skipped.
func ParseURLs(text string) []string {
	urls, _ := ReadURLs(strings.NewReader(text))

	return urls
}

// ReadURLs is ParseURLs over a reader, used for URL list files.
func ReadURLs(r io.Reader) ([]string, error) {
	var urls []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		urls = append(urls, line)
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return urls, nil
}
