package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/dashboard-auth/internal/errors"
	"github.com/jrsteele09/dashboard-auth/users"
	"github.com/pkg/errors"
)

var _ users.UserRepo = (*FakeUserRepo)(nil)

// FakeUserRepo is an append-only in-memory list. Uniqueness is a linear scan.
type FakeUserRepo struct {
	users []*users.User
	lock  sync.RWMutex
}

func NewFakeUserRepo() *FakeUserRepo {
	return &FakeUserRepo{
		users: make([]*users.User, 0),
	}
}

// NewSeededUserRepo returns a repo holding the bootstrap admin account.
func NewSeededUserRepo() (*FakeUserRepo, error) {
	ur := NewFakeUserRepo()
	hash, err := users.HashPassword(users.BootstrapPassword)
	if err != nil {
		return nil, errors.Wrap(err, "[NewSeededUserRepo] HashPassword")
	}
	if err := ur.Add(&users.User{
		Username:     users.BootstrapUsername,
		Email:        users.BootstrapEmail,
		PasswordHash: hash,
	}); err != nil {
		return nil, errors.Wrap(err, "[NewSeededUserRepo] Add")
	}
	return ur, nil
}

func (ur *FakeUserRepo) Add(user *users.User) error {
	ur.lock.Lock()
	defer ur.lock.Unlock()

	if ur.indexOf(user.Username) >= 0 {
		return autherrors.ErrDuplicateUser
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.DateJoined.IsZero() {
		user.DateJoined = time.Now()
	}
	ur.users = append(ur.users, user)
	return nil
}

func (ur *FakeUserRepo) GetByUsername(username string) (*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	i := ur.indexOf(username)
	if i < 0 {
		return nil, autherrors.ErrNotFound
	}
	return ur.users[i], nil
}

func (ur *FakeUserRepo) Exists(username string) (bool, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()
	return ur.indexOf(username) >= 0, nil
}

// List returns the records in insertion order.
func (ur *FakeUserRepo) List() ([]*users.User, error) {
	ur.lock.RLock()
	defer ur.lock.RUnlock()

	out := make([]*users.User, len(ur.users))
	copy(out, ur.users)
	return out, nil
}

func (ur *FakeUserRepo) indexOf(username string) int {
	for i, u := range ur.users {
		if u.Username == username {
			return i
		}
	}
	return -1
}
