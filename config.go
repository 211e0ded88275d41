package govio

import "time"

// DriverConfig configures a backend Proactor, recognized per spec §6.
// Built with functional options over a plain struct, following
// ygrebnov-workers's config.go/options.go pattern (defaultConfig() +
// With* option funcs) and generalizing the teacher's own ring.go Option
// type (WithSQPoll, WithCQSize, ...), which DriverConfig's io_uring-
// specific options are kept compatible with.
type DriverConfig struct {
	// Capacity is the submission ring capacity (IoUring/IOCP) or event
	// batch size (Poll). Default: 1024.
	Capacity uint32

	// ThreadPoolLimit is the maximum concurrent blocking workers.
	// Default: 256.
	ThreadPoolLimit int

	// SQPollIdle enables kernel-side submission polling (IoUring) with
	// the given idle timeout. Zero disables SQPOLL.
	SQPollIdle time.Duration

	// CoopTaskrun enables IORING_SETUP_COOP_TASKRUN (IoUring).
	CoopTaskrun bool
	// TaskrunFlag enables IORING_SETUP_TASKRUN_FLAG (IoUring).
	TaskrunFlag bool

	// Eventfd, when non-zero, is an externally owned eventfd the IoUring
	// driver registers with its ring for completion notification. Zero
	// registers none; the driver does not create an eventfd of its own.
	Eventfd int

	// OpFlags is the set of opcodes the fusion selector requires support
	// for before it will choose IoUring over Poll.
	OpFlags []uint8
}

// DefaultDriverConfig mirrors ygrebnov-workers's defaultConfig() —
// centralizes defaults in one place. NewDriverConfig starts from it before
// applying options; a zero-value DriverConfig is passed on as is.
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		Capacity:        1024,
		ThreadPoolLimit: 256,
	}
}

// DriverOption configures a DriverConfig.
type DriverOption func(*DriverConfig)

// WithCapacity sets the submission ring / event batch capacity.
func WithCapacity(n uint32) DriverOption {
	return func(c *DriverConfig) { c.Capacity = n }
}

// WithThreadPoolLimit sets the maximum concurrent blocking workers.
func WithThreadPoolLimit(n int) DriverOption {
	return func(c *DriverConfig) { c.ThreadPoolLimit = n }
}

// WithSQPollIdle enables SQPOLL with the given idle timeout (IoUring
// only; ignored by IOCP/Poll).
func WithSQPollIdle(d time.Duration) DriverOption {
	return func(c *DriverConfig) { c.SQPollIdle = d }
}

// WithCoopTaskrun enables cooperative task running (IoUring only).
func WithCoopTaskrun() DriverOption {
	return func(c *DriverConfig) { c.CoopTaskrun = true }
}

// WithTaskrunFlag enables the taskrun flag hint (IoUring only).
func WithTaskrunFlag() DriverOption {
	return func(c *DriverConfig) { c.TaskrunFlag = true }
}

// WithEventFd registers an externally-owned eventfd (IoUring only).
func WithEventFd(fd int) DriverOption {
	return func(c *DriverConfig) { c.Eventfd = fd }
}

// WithOpFlags sets the opcodes the fusion selector requires.
func WithOpFlags(ops ...uint8) DriverOption {
	return func(c *DriverConfig) { c.OpFlags = ops }
}

// NewDriverConfig builds a DriverConfig from DefaultDriverConfig plus the
// given options.
func NewDriverConfig(opts ...DriverOption) DriverConfig {
	cfg := DefaultDriverConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// RuntimeConfig configures the cooperative scheduler, per spec §6.
type RuntimeConfig struct {
	// EventInterval caps how many queued submit, cancel and timer requests
	// the runtime's loop goroutine handles before each Poll of the
	// proactor. The completions one Poll delivers are not counted against
	// it. Default: 61 (matches the reference).
	EventInterval int

	// Driver is the backend configuration passed through to the fusion
	// selector.
	Driver DriverConfig

	// Logger overrides the default package logger (see internal/govlog).
	Logger Logger
}

// Logger is the minimal logging surface the runtime and backends log
// through, matching go-ublk's internal/logging call shape
// (Debug/Info/Warn/Error with key-value pairs) so internal/govlog can
// implement it directly.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

func DefaultRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		EventInterval: 61,
		Driver:        DefaultDriverConfig(),
	}
}

// RuntimeOption configures a RuntimeConfig.
type RuntimeOption func(*RuntimeConfig)

// WithEventInterval sets how many queued requests the loop goroutine
// handles before each Poll of the proactor (see RuntimeConfig.EventInterval).
func WithEventInterval(n int) RuntimeOption {
	return func(c *RuntimeConfig) { c.EventInterval = n }
}

// WithDriverOptions applies backend DriverOptions to the runtime's
// embedded DriverConfig.
func WithDriverOptions(opts ...DriverOption) RuntimeOption {
	return func(c *RuntimeConfig) {
		for _, opt := range opts {
			opt(&c.Driver)
		}
	}
}

// WithLogger overrides the runtime's logger.
func WithLogger(l Logger) RuntimeOption {
	return func(c *RuntimeConfig) { c.Logger = l }
}

func NewRuntimeConfig(opts ...RuntimeOption) RuntimeConfig {
	cfg := DefaultRuntimeConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
