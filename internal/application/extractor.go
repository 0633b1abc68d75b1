package application

import (
	"strings"

	"github.com/bnema/telegram-query-cli/internal/domain"
)

const defaultWindow = 5

// Extractor pulls a query token out of the most recent messages of a chat.
type Extractor struct {
	matchers []domain.Matcher
	window   int
}

// NewExtractor uses domain.DefaultMatchers when no matchers are given.
func NewExtractor(window int, matchers ...domain.Matcher) *Extractor {
	if window <= 0 {
		window = defaultWindow
	}
	if len(matchers) == 0 {
		matchers = domain.DefaultMatchers()
	}
	return &Extractor{matchers: matchers, window: window}
}

func (e *Extractor) Window() int {
	return e.window
}

// Extract scans messages, newest first, and returns the capture of the
// highest priority matcher that hits any message sent by expectedSender.
func (e *Extractor) Extract(messages []domain.Message, expectedSender string) (string, bool) {
	token, _, ok := e.extract(messages, expectedSender)
	return token, ok
}

func (e *Extractor) extract(messages []domain.Message, expectedSender string) (string, string, bool) {
	if len(messages) > e.window {
		messages = messages[:e.window]
	}

	bodies := make([]string, 0, len(messages))
	for _, message := range messages {
		if message.SenderID != expectedSender || strings.TrimSpace(message.Body) == "" {
			continue
		}
		bodies = append(bodies, message.Body)
	}

	for _, matcher := range e.matchers {
		for _, body := range bodies {
			if token, ok := matcher.Match(body); ok {
				return token, matcher.Name(), true
			}
		}
	}

	return "", "", false
}
