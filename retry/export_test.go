package retry

// WithSleep exposes the sleep override to tests so delay behavior can be
// observed without real waiting.
var WithSleep = withSleep
