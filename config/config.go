package config

// Flag-backed settings shared across commands. Cobra binds them at startup,
// everything after that treats them as read-only.

var Network string

var (
	RuleFile string
	ABIFile  string

	LookbackDays       int
	SamplesPerSelector int
	WindowBlocks       uint64
	PageSize           int

	RatePerSecond      int
	MaxAttempts        int
	ReceiptConcurrency int

	JSONOutputFile string
	Verbose        bool
)
