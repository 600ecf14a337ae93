package domain

// Profile is a registered dashboard user able to submit expenses by phone.
type Profile struct {
	ID             string
	WhatsAppNumber string
}

// Collaborator is an external submitter tied to an organization without a
// dashboard account.
type Collaborator struct {
	ID             string
	OrganizationID string
	Phone          string
}

// Identity is the result of resolving a phone number to an internal actor.
type Identity struct {
	UserID         string
	IsCollaborator bool
}
