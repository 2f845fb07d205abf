package dummydb

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.user.table))
	for _, u := range repo.db.user.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) CheckUniqueness(_ context.Context, username, email string) error {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()
	return repo.checkUniqueness(username, email)
}

func (repo *userRepository) checkUniqueness(username, email string) error {
	for _, usr := range repo.db.user.table {
		if usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	if err := repo.checkUniqueness(usr.Username, usr.Email); err != nil {
		return user.User{}, err
	}
	repo.db.user.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.user.table[filter.ID]; ok {
			return *usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.user.table {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	case filter.UsernameOrEmail != "":
		for _, usr := range repo.db.user.table {
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.user.RLock()
	defer repo.db.user.RUnlock()

	users := make([]user.User, 0)
	search := strings.ToLower(filter.Search)
	for _, u := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Username), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		if len(filter.Roles) > 0 && !hasRole(u, filter.Roles) {
			continue
		}
		if filter.ClassName != "" && u.ClassName != filter.ClassName {
			continue
		}
		users = append(users, u)
	}

	sortUsers(users, ordering)
	return users, nil
}

func hasRole(u user.User, roles []user.Role) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at"}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, o := range ordering {
			var cmp int
			switch o.Field {
			case "username":
				cmp = strings.Compare(users[i].Username, users[j].Username)
			case "email":
				cmp = strings.Compare(users[i].Email, users[j].Email)
			case "role":
				cmp = strings.Compare(string(users[i].Role), string(users[j].Role))
			case "class_name":
				cmp = strings.Compare(users[i].ClassName, users[j].ClassName)
			case "created_at":
				cmp = users[i].CreatedAt.Compare(users[j].CreatedAt)
			}
			if cmp == 0 {
				continue
			}
			if o.Ascending {
				return cmp < 0
			}
			return cmp > 0
		}
		return users[i].ID < users[j].ID
	})
}

func (repo *userRepository) UpdatePassword(_ context.Context, id string, hash []byte, updatedAt time.Time) error {
	repo.db.user.Lock()
	defer repo.db.user.Unlock()

	usr, ok := repo.db.user.table[id]
	if !ok {
		return user.ErrNotFound
	}
	usr.PasswordHash = hash
	usr.UpdatedAt = updatedAt
	return nil
}

// DeleteUser also removes the predictions & raw inputs of the user, like the postgres cascade.
func (repo *userRepository) DeleteUser(_ context.Context, id string) error {
	repo.db.user.Lock()
	if _, ok := repo.db.user.table[id]; !ok {
		repo.db.user.Unlock()
		return user.ErrNotFound
	}
	delete(repo.db.user.table, id)
	repo.db.user.Unlock()

	repo.db.prediction.deleteSubject(id)
	return nil
}
