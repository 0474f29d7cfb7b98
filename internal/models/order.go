package models

import "time"

// Order statuses. An order starts in StatusPending and moves to
// StatusConfirmed when its confirmation token is redeemed. Everything past
// confirmed is an operator decision and never moves backward.
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusApproved   = "approved"
	StatusCancelled  = "cancelled"
)

// OperatorTransitions lists the statuses an operator may set per current
// status. Redemption (pending -> confirmed) is handled by the booking
// workflow, not here.
var OperatorTransitions = map[string][]string{
	StatusConfirmed:  {StatusProcessing, StatusApproved, StatusCancelled},
	StatusProcessing: {StatusApproved, StatusCancelled},
}

type Order struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone,omitempty"`
	Organization string     `json:"organization,omitempty"`
	Message      string     `json:"message,omitempty"`
	LectureID    string     `json:"lectureId"`
	UserID       *string    `json:"userId,omitempty"`
	LecturerID   *string    `json:"lecturerId,omitempty"`
	Status       string     `json:"status"`
	IsConfirmed  bool       `json:"isConfirmed"`
	LectureDate  *time.Time `json:"lectureDate,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    *time.Time `json:"updatedAt,omitempty"`

	ConfirmationTokenHash    *string    `json:"-"`
	ConfirmationTokenExpires *time.Time `json:"-"`
}

// CanTransition reports whether an operator may move an order from its
// current status to next.
func (o *Order) CanTransition(next string) bool {
	for _, allowed := range OperatorTransitions[o.Status] {
		if allowed == next {
			return true
		}
	}
	return false
}
