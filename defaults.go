package synapticai

// Fixed middleware priorities. Lower values run first (outermost).
const (
	orderRequestID = 100
	orderRecovery  = 200
	orderTracing   = 300
	orderLogging   = 400
	orderRateLimit = 500
	orderAuth      = 600
	orderTimeout   = 700
	orderCustom    = 1000
)

// DefaultOptions returns the recommended set of options for production use:
// panic recovery, request ids and access logging.
func DefaultOptions() []Option {
	return []Option{
		WithRecovery(),
		WithRequestID(),
		WithAccessLog(),
	}
}
