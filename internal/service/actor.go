package service

// Actor is the authenticated caller of an operation.
type Actor struct {
	UID   string
	Admin bool
}

func (a Actor) Is(uid string) bool {
	return a.UID != "" && a.UID == uid
}
