package models

// IdentificationCandidate is the item identified from the submitted image
// and/or keywords. Created once by the identification stage and immutable
// thereafter; 1:1 with its job.
type IdentificationCandidate struct {
	PartName       string   `json:"part_name" validate:"required"`
	Category       string   `json:"category"`
	Confidence     float64  `json:"confidence" validate:"gte=0,lte=1"`
	RawDescription string   `json:"raw_description"`
	// SupplierURLHints is the ordered list of raw supplier URLs suggested by
	// the identification capability. Normalization and dedup happen later in
	// the enrichment coordinator, never here.
	SupplierURLHints []string `json:"supplier_url_hints"`
}
