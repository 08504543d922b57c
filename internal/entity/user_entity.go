package entity

// Profile is the slice of the external user-profile collaborator this
// subsystem reads: just enough to denormalize display info into sessions
// and to self-heal stale avatars.
type Profile struct {
	Id         string
	Name       string
	University string
	Image      string
}
