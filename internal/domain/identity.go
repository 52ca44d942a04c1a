package domain

const (
	MaxCallIDLen      = 64
	MaxDisplayNameLen = 64
)

// Identity is the pair of claims the external auth layer attaches to a live
// connection. The coordinator trusts it as-is and never re-validates.
type Identity struct {
	UserID      UserID
	DisplayName string
}

func NewIdentity(userID, displayName string) (Identity, error) {
	if userID == "" {
		return Identity{}, ErrUserIDEmpty
	}
	if displayName == "" {
		return Identity{}, ErrDisplayNameEmpty
	}
	if len(displayName) > MaxDisplayNameLen {
		return Identity{}, ErrDisplayNameTooLong
	}
	return Identity{UserID: UserID(userID), DisplayName: displayName}, nil
}

func (c CallID) Validate() error {
	if c == "" {
		return ErrCallIDEmpty
	}
	if len(c) > MaxCallIDLen {
		return ErrCallIDTooLong
	}
	return nil
}
