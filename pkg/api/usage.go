package api

// Usage holds token accounting for one completion. Counters are pointers
// so that "not reported by the backend" stays distinguishable from
// "reported as zero".
type Usage struct {
	InputTokens  *int `json:"input_tokens,omitempty"`
	OutputTokens *int `json:"output_tokens,omitempty"`
	TotalTokens  *int `json:"total_tokens,omitempty"`
}

// IntPtr is a convenience for building Usage literals.
func IntPtr(v int) *int { return &v }

// Total returns the reported total, deriving input+output when the
// backend omitted it. Returns nil when neither side is known.
func (u Usage) Total() *int {
	if u.TotalTokens != nil {
		return u.TotalTokens
	}
	if u.InputTokens == nil && u.OutputTokens == nil {
		return nil
	}
	var total int
	if u.InputTokens != nil {
		total += *u.InputTokens
	}
	if u.OutputTokens != nil {
		total += *u.OutputTokens
	}
	return &total
}

// Merge folds counters from a later event into u. Within one stream the
// counts are monotonically non-decreasing, so a newly reported value
// replaces the previous one and an absent value leaves it untouched.
func (u *Usage) Merge(other Usage) {
	if other.InputTokens != nil {
		u.InputTokens = other.InputTokens
	}
	if other.OutputTokens != nil {
		u.OutputTokens = other.OutputTokens
	}
	if other.TotalTokens != nil {
		u.TotalTokens = other.TotalTokens
	}
}

// Clone copies the usage so a snapshot consumer never aliases the
// accumulator's counters.
func (u Usage) Clone() Usage {
	var out Usage
	if u.InputTokens != nil {
		out.InputTokens = IntPtr(*u.InputTokens)
	}
	if u.OutputTokens != nil {
		out.OutputTokens = IntPtr(*u.OutputTokens)
	}
	if u.TotalTokens != nil {
		out.TotalTokens = IntPtr(*u.TotalTokens)
	}
	return out
}
