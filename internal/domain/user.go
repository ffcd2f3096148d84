package domain

import "time"

// User is an identity known to the document store. Anonymous users are
// created on first sign-in and owned only by the token they were issued.
type User struct {
	ID         string    `bson:"-" json:"id"`
	Anonymous  bool      `bson:"anonymous" json:"anonymous"`
	CreatedAt  time.Time `bson:"createdAt" json:"createdAt"`
	LastSeenAt time.Time `bson:"lastSeenAt" json:"lastSeenAt"`
}
