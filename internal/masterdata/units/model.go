package units

// Unit represents a dosage unit such as tablet, capsule, or ml.
type Unit struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
