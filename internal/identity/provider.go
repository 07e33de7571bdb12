package identity

import "github.com/google/uuid"

type uuidProvider struct{}

// Provider issues unique identifiers for stored rows.
type Provider interface {
	NewID() (string, error)
}

// NewUUIDProvider constructs a Provider that issues UUIDv7 identifiers.
func NewUUIDProvider() Provider {
	return &uuidProvider{}
}

func (p *uuidProvider) NewID() (string, error) {
	value, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
