package dedupe

// Option configures the in-memory deduper.
type Option func(*inMemoryDeduper)

// WithMaxSize caps the tracked pending keys, evicting the oldest when full.
// Zero or a negative n tracks without limit.
func WithMaxSize(n int) Option {
	return func(d *inMemoryDeduper) { d.maxSize = n }
}
