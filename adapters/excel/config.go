package excel

// ReaderConfig holds configuration for matrix files
type ReaderConfig struct {
	// Sheet selects the xlsx sheet; empty means the first sheet.
	Sheet string `json:"sheet"`
	// Transposed files carry one section per row and one gene per column.
	Transposed bool `json:"transposed"`
}

// DefaultReaderConfig returns the layout written by most tomo-seq pipelines:
// genes as rows, sections as columns, first sheet.
func DefaultReaderConfig() ReaderConfig {
	return ReaderConfig{}
}
