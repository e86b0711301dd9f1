package replay

import (
	"context"
	"log/slog"
	"sort"
	"unicode"

	"github.com/offlinefirst/motionreplay/pkg/timeline"
)

// keyState tracks which keys playback currently holds down.
type keyState struct {
	held map[uint32]timeline.Key
}

func newKeyState() *keyState {
	return &keyState{held: make(map[uint32]timeline.Key)}
}

// down marks k held and reports whether it was previously up.
func (s *keyState) down(k timeline.Key) bool {
	if _, ok := s.held[k.Code]; ok {
		return false
	}
	s.held[k.Code] = k
	return true
}

// up marks k released and reports whether it was held.
func (s *keyState) up(k timeline.Key) bool {
	if _, ok := s.held[k.Code]; !ok {
		return false
	}
	delete(s.held, k.Code)
	return true
}

// releaseAll injects a key-up for every held key, in code order, and clears
// the set even when injection fails.
func (s *keyState) releaseAll(ctx context.Context, inj Injector, logger *slog.Logger) int {
	codes := make([]uint32, 0, len(s.held))
	for code := range s.held {
		codes = append(codes, code)
	}
	sort.Slice(codes, func(i, j int) bool { return codes[i] < codes[j] })
	for _, code := range codes {
		k := s.held[code]
		if err := inj.Key(ctx, k, false); err != nil {
			logger.Warn("force release failed", "key", k.String(), "error", err)
		}
		delete(s.held, code)
	}
	return len(codes)
}

// resolveKey fills in a missing code from a single-character label. A zero
// result means the key cannot be injected.
func resolveKey(k timeline.Key) timeline.Key {
	if k.Code != 0 {
		return k
	}
	runes := []rune(k.Label)
	if len(runes) == 1 && runes[0] < unicode.MaxASCII {
		k.Code = uint32(unicode.ToUpper(runes[0]))
	}
	return k
}
