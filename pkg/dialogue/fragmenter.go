package dialogue

import "strings"

type FragmenterConfig struct {
	MinLen int `mapstructure:"min_len"`
}

// Fragmenter splits a token stream into sentence-level fragments for
// synthesis. Fragments are emitted lazily; the output channel closes when
// the token stream does, after flushing any tail.
type Fragmenter struct {
	cfg FragmenterConfig
}

func NewFragmenter(cfg FragmenterConfig) *Fragmenter {
	if cfg.MinLen <= 0 {
		cfg.MinLen = 8
	}
	return &Fragmenter{cfg: cfg}
}

// Fragments consumes tokens and yields sentence fragments. The returned
// channel is unbuffered so fragments are produced no faster than the bridge
// consumes them.
func (f *Fragmenter) Fragments(tokens <-chan string) <-chan string {
	out := make(chan string)
	go func() {
		defer close(out)
		var sb strings.Builder
		for tok := range tokens {
			sb.WriteString(tok)
			text := strings.TrimSpace(sb.String())
			if eosDetected(text) && len(text) >= f.cfg.MinLen {
				out <- text
				sb.Reset()
			}
		}
		if tail := strings.TrimSpace(sb.String()); tail != "" {
			out <- tail
		}
	}()
	return out
}

func eosDetected(s string) bool {
	t := strings.TrimSpace(s)
	if len(t) == 0 {
		return false
	}
	if strings.HasSuffix(t, "...") {
		return len(t) >= 12
	}
	last := t[len(t)-1]
	return last == '.' || last == '!' || last == '?' || last == '\n'
}
