package usagemethods

// UsageMethod represents how a medicine is administered, such as oral or topical.
type UsageMethod struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}
