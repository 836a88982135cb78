// Package synthesis turns reply text into telephone audio, caching the
// rendered bytes so repeated prompts never hit the provider twice.
package synthesis

import (
	"context"
	"strings"
	"sync"
	"unicode"

	"go.uber.org/zap"

	"cabgo/models"
	"cabgo/utils"
)

// Style selects the speaking manner applied through SSML before synthesis.
type Style string

const (
	StyleNeutral    Style = "neutral"
	StyleUpbeat     Style = "upbeat"
	StyleApologetic Style = "apologetic"
)

// Synthesizer renders one utterance to single-channel mu-law audio at the
// telephony sample rate.
type Synthesizer interface {
	Synthesize(ctx context.Context, lang models.Language, text string, style Style) ([]byte, error)
}

// maxKeyTextLen bounds the text portion of a cache key. Two long utterances
// sharing a prefix beyond this bound collide and reuse each other's audio;
// conversational replies stay well under it.
const maxKeyTextLen = 80

// Cache memoizes rendered audio per normalized utterance. Concurrent
// requests for the same key wait for a single provider call.
type Cache struct {
	provider Synthesizer
	logger   *zap.Logger

	mu      sync.Mutex
	entries map[string][]byte
	pending map[string]chan struct{}
}

// NewCache wraps provider with a memoizing layer.
func NewCache(provider Synthesizer) *Cache {
	return &Cache{
		provider: provider,
		logger:   utils.GetLogger(),
		entries:  make(map[string][]byte),
		pending:  make(map[string]chan struct{}),
	}
}

// Speak returns the audio for text, rendering it on a miss. Whatever the
// outcome, the provider runs at most once per key at a time.
func (c *Cache) Speak(ctx context.Context, lang models.Language, text string, style Style) ([]byte, error) {
	key := cacheKey(lang, text, style)
	for {
		c.mu.Lock()
		if audio, ok := c.entries[key]; ok {
			c.mu.Unlock()
			return audio, nil
		}
		wait, inflight := c.pending[key]
		if !inflight {
			wait = make(chan struct{})
			c.pending[key] = wait
			c.mu.Unlock()
			return c.render(ctx, key, lang, text, style, wait)
		}
		c.mu.Unlock()

		select {
		case <-wait:
			// Leader finished; loop to pick up the entry or take over
			// leadership if it failed.
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *Cache) render(ctx context.Context, key string, lang models.Language, text string, style Style, wait chan struct{}) ([]byte, error) {
	audio, err := c.provider.Synthesize(ctx, lang, text, style)

	c.mu.Lock()
	delete(c.pending, key)
	if err == nil {
		c.entries[key] = audio
	}
	c.mu.Unlock()
	close(wait)

	if err != nil {
		c.logger.Warn("synthesis failed",
			zap.String("lang", string(lang)), zap.Error(err))
		return nil, err
	}
	return audio, nil
}

// PrewarmPhrase is one fixed utterance with the style it will be spoken
// with. Style is part of the cache key, so prewarming under a different
// style than the caller uses would still miss.
type PrewarmPhrase struct {
	Text  string
	Style Style
}

// Prewarm renders the fixed phrases so the first caller never waits on the
// provider for a greeting or prompt. Failures are logged and skipped; the
// phrase will be rendered on first use instead.
func (c *Cache) Prewarm(ctx context.Context, lang models.Language, phrases []PrewarmPhrase) {
	for _, phrase := range phrases {
		if _, err := c.Speak(ctx, lang, phrase.Text, phrase.Style); err != nil {
			c.logger.Warn("prewarm skipped phrase",
				zap.String("lang", string(lang)), zap.Error(err))
		}
	}
}

// Len reports the number of cached renditions.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// cacheKey normalizes the utterance: lowercase, punctuation stripped,
// whitespace collapsed, bounded length, prefixed by language and style.
func cacheKey(lang models.Language, text string, style Style) string {
	var sb strings.Builder
	lastSpace := true
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsSpace(r):
			if !lastSpace {
				sb.WriteRune(' ')
				lastSpace = true
			}
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped
		default:
			sb.WriteRune(r)
			lastSpace = false
		}
	}
	normalized := strings.TrimSpace(sb.String())
	if len(normalized) > maxKeyTextLen {
		normalized = normalized[:maxKeyTextLen]
	}
	return string(lang) + "|" + string(style) + "|" + normalized
}
