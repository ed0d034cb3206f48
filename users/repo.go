package users

// UserRepo is the backing store of username -> password-hash records.
// Add must reject an existing username with errors.ErrDuplicateUser and
// lookups of unknown usernames must return errors.ErrNotFound.
type UserRepo interface {
	Add(user *User) error
	GetByUsername(username string) (*User, error)
	Exists(username string) (bool, error)
	List() ([]*User, error)
}
