package join

const (
	defaultMaxRecords          = 1000
	defaultInFilterThreshold   = 100
	defaultSecondaryMultiplier = 10
	defaultPrefixSeparator     = "_"
)

// Options bound the join executors.
type Options struct {
	// DefaultMaxRecords caps joined rows when the request gives no bound.
	DefaultMaxRecords int
	// InFilterThreshold is the distinct primary key count below which the
	// secondary fetch is restricted with an IN filter.
	InFilterThreshold int
	// SecondaryMultiplier scales the row cap for secondary full scans.
	SecondaryMultiplier int
	// PrefixSeparator joins the secondary entity name and field name.
	PrefixSeparator string
}

// DefaultOptions returns a 1,000 row cap, IN filters below 100 keys and
// secondary scans capped at 10x the row cap.
func DefaultOptions() Options {
	return Options{
		DefaultMaxRecords:   defaultMaxRecords,
		InFilterThreshold:   defaultInFilterThreshold,
		SecondaryMultiplier: defaultSecondaryMultiplier,
		PrefixSeparator:     defaultPrefixSeparator,
	}
}

func (o Options) normalized() Options {
	n := o
	if n.DefaultMaxRecords <= 0 {
		n.DefaultMaxRecords = defaultMaxRecords
	}
	if n.InFilterThreshold <= 0 {
		n.InFilterThreshold = defaultInFilterThreshold
	}
	if n.SecondaryMultiplier <= 0 {
		n.SecondaryMultiplier = defaultSecondaryMultiplier
	}
	if n.PrefixSeparator == "" {
		n.PrefixSeparator = defaultPrefixSeparator
	}
	return n
}
