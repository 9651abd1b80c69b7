package diseases

// Disease represents a diagnosable condition used on medical records.
type Disease struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}
