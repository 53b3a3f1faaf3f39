// Package budget checks metrics against configured performance ceilings.
package budget

// Budget is a flat record of one numeric ceiling per tracked dimension.
// A zero field disables that check.
type Budget struct {
	LCP                   float64 `yaml:"lcp" json:"lcp"`                                         // ms
	FID                   float64 `yaml:"fid" json:"fid"`                                         // ms
	CLS                   float64 `yaml:"cls" json:"cls"`                                         // score
	APIResponseTime       float64 `yaml:"api_response_time" json:"api_response_time"`             // ms
	APIErrorRate          float64 `yaml:"api_error_rate" json:"api_error_rate"`                   // percent
	ResourceLoadTime      float64 `yaml:"resource_load_time" json:"resource_load_time"`           // ms
	TotalPageWeight       float64 `yaml:"total_page_weight" json:"total_page_weight"`             // bytes
	FunctionExecutionTime float64 `yaml:"function_execution_time" json:"function_execution_time"` // ms
	HeapSizeLimit         float64 `yaml:"heap_size_limit" json:"heap_size_limit"`                 // percent of limit
	DOMNodeCount          float64 `yaml:"dom_node_count" json:"dom_node_count"`
}

// Default returns the stock budget.
func Default() Budget {
	return Budget{
		LCP:                   2500,
		FID:                   100,
		CLS:                   0.1,
		APIResponseTime:       1000,
		APIErrorRate:          5,
		ResourceLoadTime:      3000,
		TotalPageWeight:       5 << 20,
		FunctionExecutionTime: 50,
		HeapSizeLimit:         80,
		DOMNodeCount:          5000,
	}
}

// Patch is a partial budget update; nil fields are left unchanged.
type Patch struct {
	LCP                   *float64 `yaml:"lcp" json:"lcp,omitempty"`
	FID                   *float64 `yaml:"fid" json:"fid,omitempty"`
	CLS                   *float64 `yaml:"cls" json:"cls,omitempty"`
	APIResponseTime       *float64 `yaml:"api_response_time" json:"api_response_time,omitempty"`
	APIErrorRate          *float64 `yaml:"api_error_rate" json:"api_error_rate,omitempty"`
	ResourceLoadTime      *float64 `yaml:"resource_load_time" json:"resource_load_time,omitempty"`
	TotalPageWeight       *float64 `yaml:"total_page_weight" json:"total_page_weight,omitempty"`
	FunctionExecutionTime *float64 `yaml:"function_execution_time" json:"function_execution_time,omitempty"`
	HeapSizeLimit         *float64 `yaml:"heap_size_limit" json:"heap_size_limit,omitempty"`
	DOMNodeCount          *float64 `yaml:"dom_node_count" json:"dom_node_count,omitempty"`
}

func (b *Budget) apply(p Patch) {
	set := func(dst *float64, src *float64) {
		if src != nil {
			*dst = *src
		}
	}
	set(&b.LCP, p.LCP)
	set(&b.FID, p.FID)
	set(&b.CLS, p.CLS)
	set(&b.APIResponseTime, p.APIResponseTime)
	set(&b.APIErrorRate, p.APIErrorRate)
	set(&b.ResourceLoadTime, p.ResourceLoadTime)
	set(&b.TotalPageWeight, p.TotalPageWeight)
	set(&b.FunctionExecutionTime, p.FunctionExecutionTime)
	set(&b.HeapSizeLimit, p.HeapSizeLimit)
	set(&b.DOMNodeCount, p.DOMNodeCount)
}
