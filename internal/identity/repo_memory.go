package identity

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo is an in-memory Repository for tests and early development.
type MemoryRepo struct {
	mu    sync.Mutex
	users map[string]User
	teams map[string]Team
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{users: map[string]User{}, teams: map[string]Team{}}
}

func (r *MemoryRepo) AddUser(u User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = u
}

func (r *MemoryRepo) AddTeam(t Team) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.teams[t.ID] = t
}

func (r *MemoryRepo) GetUser(ctx context.Context, id string) (User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (r *MemoryRepo) ListUsers(ctx context.Context) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) ListTeamUsers(ctx context.Context, teamID string) ([]User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]User, 0)
	for _, u := range r.users {
		if u.TeamID == teamID {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MemoryRepo) UpdateUserTeam(ctx context.Context, userID, teamID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return ErrNotFound
	}
	u.TeamID = teamID
	r.users[userID] = u
	return nil
}

func (r *MemoryRepo) GetTeam(ctx context.Context, id string) (Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.teams[id]
	if !ok {
		return Team{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) GetTeamByPhone(ctx context.Context, phoneNumber string) (Team, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.teams {
		if t.PhoneNumber == phoneNumber {
			return t, nil
		}
	}
	return Team{}, ErrNotFound
}
