package main

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// parseIDList parses document ID arguments: plain IDs, comma-separated
// lists, and inclusive ranges ("12", "1,2,3", "100-110") in any mix.
func parseIDList(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, part := range strings.Split(arg, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			lo, hi, ok := strings.Cut(part, "-")
			if !ok {
				id, err := strconv.Atoi(part)
				if err != nil {
					return nil, eris.Errorf("invalid document id %q", part)
				}
				ids = append(ids, id)
				continue
			}
			from, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, eris.Errorf("invalid range %q", part)
			}
			to, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, eris.Errorf("invalid range %q", part)
			}
			if to < from {
				return nil, eris.Errorf("range %q is reversed", part)
			}
			for id := from; id <= to; id++ {
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil, eris.New("no document ids given")
	}
	return ids, nil
}
