package controller

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode"
)

// Streaming speeds. Instant renders the whole body in one pass.
const (
	SpeedInstant = "instant"
	SpeedFast    = "fast"
	SpeedNormal  = "normal"
	SpeedSlow    = "slow"
)

var speedDelays = map[string]time.Duration{
	SpeedInstant: 0,
	SpeedFast:    10 * time.Millisecond,
	SpeedNormal:  35 * time.Millisecond,
	SpeedSlow:    90 * time.Millisecond,
}

// SpeedDelay maps a configured speed name to its inter-token delay.
func SpeedDelay(speed string) (time.Duration, error) {
	d, ok := speedDelays[strings.ToLower(strings.TrimSpace(speed))]
	if !ok {
		return 0, fmt.Errorf("controller: unknown stream speed %q", speed)
	}
	return d, nil
}

// Streamer reveals an already-complete message body token by token. Only one
// stream runs at a time; starting a new one cancels the previous stream at
// its next token boundary.
type Streamer struct {
	delay time.Duration
	sleep func(context.Context, time.Duration)

	mu     sync.Mutex
	cancel context.CancelFunc
}

// NewStreamer creates a streamer with the given inter-token delay. A zero
// delay is the instant mode.
func NewStreamer(delay time.Duration) *Streamer {
	return &Streamer{delay: delay, sleep: sleepFor}
}

// sleepFor waits out d even when ctx is already canceled. Cancellation is
// observed after the wait, at the token boundary, never mid-delay.
func sleepFor(_ context.Context, d time.Duration) {
	time.Sleep(d)
}

// Stream reveals body through render, one token at a time. Each call to
// render receives the full text revealed so far with verbatim spans (code
// fences, tables) substituted back in, so partial output never shows a
// half-streamed code block. The final render call always carries the complete
// body. Returns ctx.Err if the stream was canceled before finishing.
func (s *Streamer) Stream(ctx context.Context, body string, render func(string)) error {
	ctx = s.begin(ctx)

	if s.delay <= 0 {
		render(body)
		return nil
	}

	text, spans := extractVerbatim(body)
	tokens := tokenize(text)

	var acc strings.Builder
	for _, tok := range tokens {
		acc.WriteString(tok)
		render(restore(acc.String(), spans))
		s.sleep(ctx, s.delay)
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return nil
}

// Cancel stops the in-flight stream, if any, at its next token boundary.
func (s *Streamer) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func (s *Streamer) begin(ctx context.Context) context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		s.cancel()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	return ctx
}

const placeholderFormat = "\x00span:%d\x00"

// extractVerbatim lifts fenced code blocks and pipe tables out of body,
// replacing each with a placeholder. The spans are restored for display only;
// streaming word by word through a code block would mangle its layout.
func extractVerbatim(body string) (string, []string) {
	var spans []string

	text := extractFences(body, &spans)
	text = extractTables(text, &spans)
	return text, spans
}

func extractFences(body string, spans *[]string) string {
	var out strings.Builder
	for {
		start := strings.Index(body, "```")
		if start < 0 {
			break
		}
		end := strings.Index(body[start+3:], "```")
		if end < 0 {
			break
		}
		end += start + 3 + 3
		out.WriteString(body[:start])
		out.WriteString(fmt.Sprintf(placeholderFormat, len(*spans)))
		*spans = append(*spans, body[start:end])
		body = body[end:]
	}
	out.WriteString(body)
	return out.String()
}

// extractTables lifts runs of consecutive pipe-delimited lines.
func extractTables(body string, spans *[]string) string {
	lines := strings.Split(body, "\n")
	var out []string
	for i := 0; i < len(lines); {
		if !isTableRow(lines[i]) {
			out = append(out, lines[i])
			i++
			continue
		}
		j := i
		for j < len(lines) && isTableRow(lines[j]) {
			j++
		}
		if j-i < 2 {
			// A lone pipe line is prose, not a table.
			out = append(out, lines[i])
			i++
			continue
		}
		out = append(out, fmt.Sprintf(placeholderFormat, len(*spans)))
		*spans = append(*spans, strings.Join(lines[i:j], "\n"))
		i = j
	}
	return strings.Join(out, "\n")
}

func isTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return strings.HasPrefix(trimmed, "|") && strings.Count(trimmed, "|") >= 2
}

func restore(text string, spans []string) string {
	for i, span := range spans {
		text = strings.Replace(text, fmt.Sprintf(placeholderFormat, i), span, 1)
	}
	return text
}

// tokenize splits text into alternating word and whitespace tokens, so the
// concatenation of all tokens reproduces the input byte for byte.
func tokenize(text string) []string {
	var tokens []string
	runes := []rune(text)
	start := 0
	for i := 0; i <= len(runes); i++ {
		if i == len(runes) {
			if start < i {
				tokens = append(tokens, string(runes[start:i]))
			}
			break
		}
		if i > start && unicode.IsSpace(runes[i]) != unicode.IsSpace(runes[start]) {
			tokens = append(tokens, string(runes[start:i]))
			start = i
		}
	}
	return tokens
}
