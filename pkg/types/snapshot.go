package types

// The snapshot types copy catalog values into placed records at placement
// time. Holding them by value rather than by reference is deliberate: later
// catalog edits or deletions must never alter historical records or invoices.

// ParameterSnapshot freezes one parameter choice on a placed order.
type ParameterSnapshot struct {
	ParameterID string `json:"parameterId"`
	Name        string `json:"name"`
	BaseCharge  int    `json:"baseCharge"`
}

// ParameterSnapshots is stored as jsonb on placed orders.
type ParameterSnapshots []ParameterSnapshot

// CollectionSnapshot freezes the chosen collection type on a placed cart.
type CollectionSnapshot struct {
	CollectionTypeID string `json:"collectionTypeId"`
	Name             string `json:"name"`
	Category         string `json:"category"`
	BaseCharge       int    `json:"baseCharge"`
}

// DeliverySnapshot freezes courier details on a placed cart.
type DeliverySnapshot struct {
	Name          string  `json:"name"`
	AddressLine1  string  `json:"addressLine1"`
	AddressLine2  string  `json:"addressLine2,omitempty"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	PinCode       string  `json:"pinCode"`
	ContactNumber string  `json:"contactNumber"`
	Status        string  `json:"status"`
	CourierName   *string `json:"courierName,omitempty"`
	TrackingID    *string `json:"trackingId,omitempty"`
}

// PickupSnapshot freezes pickup details on a placed cart.
type PickupSnapshot struct {
	Location      string `json:"location"`
	Slot          string `json:"slot,omitempty"`
	ContactNumber string `json:"contactNumber"`
	Status        string `json:"status"`
}
