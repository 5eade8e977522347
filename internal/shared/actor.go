package shared

// Actor identifies who performed a mutation. ID is optional; kiosk flows only
// carry a self-reported name.
type Actor struct {
	Name string
	ID   *int64
}
