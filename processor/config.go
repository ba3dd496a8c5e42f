package processor

// Config holds the settings a Processor applies to every account it
// creates.
type Config struct {
	// TreeRent and QueueRent are the rents the rollover fee of new accounts
	// is computed from.
	TreeRent  uint64
	QueueRent uint64

	// MetricsNamespace prefixes every metric name.
	MetricsNamespace string

	// SealIssuer and SealSubject go into the CWT claims of sealed roots.
	SealIssuer  string
	SealSubject string
}

func DefaultConfig() Config {
	return Config{
		TreeRent:         1_000_000,
		QueueRent:        1_000_000,
		MetricsNamespace: "batchedmerkle",
		SealIssuer:       "batchedmerkle",
		SealSubject:      "tree-state",
	}
}
