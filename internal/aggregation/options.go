package aggregation

const (
	defaultRecordCap         = 5000
	defaultSamplingThreshold = 100000
	defaultSampleSize        = 10000
	defaultSampleChunks      = 10
)

// Options bound the scan strategies.
type Options struct {
	DefaultRecordCap  int
	SamplingThreshold int
	SampleSize        int
	SampleChunks      int
}

// DefaultOptions returns a 5,000 record default cap and 10,000 record samples
// drawn in 10 chunks above 100,000 records.
func DefaultOptions() Options {
	return Options{
		DefaultRecordCap:  defaultRecordCap,
		SamplingThreshold: defaultSamplingThreshold,
		SampleSize:        defaultSampleSize,
		SampleChunks:      defaultSampleChunks,
	}
}

func (o Options) normalized() Options {
	n := o
	if n.DefaultRecordCap <= 0 {
		n.DefaultRecordCap = defaultRecordCap
	}
	if n.SamplingThreshold <= 0 {
		n.SamplingThreshold = defaultSamplingThreshold
	}
	if n.SampleSize <= 0 {
		n.SampleSize = defaultSampleSize
	}
	if n.SampleChunks <= 0 {
		n.SampleChunks = defaultSampleChunks
	}
	return n
}
