package watchers

// Option configures a watcher. Options given to a constructor are the
// defaults; options given to Watch override them from then on.
type Option func(*config)

type config struct {
	callOnCreated  bool
	include        []string
	exclude        []string
	nested         bool
	membershipOnly bool
	deferUnknown   bool
}

// WithCallOnCreated notifies when a watched entity is created.
func WithCallOnCreated(enabled bool) Option {
	return func(c *config) {
		c.callOnCreated = enabled
	}
}

// WithInclude restricts the related fields whose modification is reported.
func WithInclude(fields ...string) Option {
	return func(c *config) {
		c.include = append([]string(nil), fields...)
	}
}

// WithExclude ignores modifications of the given related fields.
func WithExclude(fields ...string) Option {
	return func(c *config) {
		c.exclude = append([]string(nil), fields...)
	}
}

// WithDeferUnknown keeps a watch pending when its attribute is not declared
// yet, for instance a reverse accessor whose declaring type is registered
// later. Binding is retried on every type registration.
func WithDeferUnknown(enabled bool) Option {
	return func(c *config) {
		c.deferUnknown = enabled
	}
}

// nested marks a watcher owned by another one; it stays out of the registry.
func nested() Option {
	return func(c *config) {
		c.nested = true
	}
}

// membershipOnly limits a related watcher to membership changes. Member
// modifications are left to per-member model watchers.
func membershipOnly() Option {
	return func(c *config) {
		c.membershipOnly = true
	}
}
