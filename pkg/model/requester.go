package model

import "slotkeeper/pkg/sanitizer"

const (
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// Requester is the already-authenticated caller of an operation.
type Requester struct {
	ID    string `json:"id"`
	Staff bool   `json:"staff"`
}

func (r Requester) Anonymous() bool {
	return r.ID == ""
}

// AccessPolicy decides whether requester may act on booking.
type AccessPolicy func(requester Requester, booking *Booking) bool

// HolderOrStaff admits the booking's holder and any staff member. Holders
// are stored normalized, so the requester id is compared the same way.
func HolderOrStaff(requester Requester, booking *Booking) bool {
	if requester.Staff {
		return true
	}
	return !requester.Anonymous() && booking != nil && booking.Holder == sanitizer.NormalizeName(requester.ID)
}
