package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"qms-data/internal/store"
)

// Sequencer allocates human record numbers PREFIX-YYYY-NNNN.
// The counter lives in the settings KV under qms:seq:<prefix>:<year>.
type Sequencer struct {
	kv store.KV
}

func NewSequencer(kv store.KV) *Sequencer {
	return &Sequencer{kv: kv}
}

// Next returns the next number for prefix/year. used holds numbers already in
// the store (e.g. after an import) so the counter never hands out a duplicate.
func (s *Sequencer) Next(ctx context.Context, prefix string, year int, used []string) (string, error) {
	key := fmt.Sprintf("qms:seq:%s:%d", prefix, year)
	n, err := s.kv.Next(ctx, key, int64(maxSequence(prefix, year, used)))
	if err != nil {
		return "", fmt.Errorf("failed to allocate %s number: %w", prefix, err)
	}
	return FormatNumber(prefix, year, int(n)), nil
}

func FormatNumber(prefix string, year, n int) string {
	return fmt.Sprintf("%s-%04d-%04d", prefix, year, n)
}

func maxSequence(prefix string, year int, used []string) int {
	head := fmt.Sprintf("%s-%04d-", prefix, year)
	max := 0
	for _, num := range used {
		if !strings.HasPrefix(num, head) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimPrefix(num, head))
		if err == nil && n > max {
			max = n
		}
	}
	return max
}
