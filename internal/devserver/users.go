// ABOUTME: Seeded user directory for the dev backend
// ABOUTME: Loads accounts from YAML and stores bcrypt password hashes

package devserver

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/Rin111124/Fastfood-WEB-frontend-sub001/models"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

// SeedUser is one account in the YAML seed file. Passwords are plain text in the
// seed and hashed on load.
type SeedUser struct {
	Username string `yaml:"username"`
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
	FullName string `yaml:"fullName"`
	Verified bool   `yaml:"verified"`
}

type seedFile struct {
	Users []SeedUser `yaml:"users"`
}

// DefaultSeed is used when no seed file is configured
var DefaultSeed = []SeedUser{
	{Username: "crew.lead", Email: "crew.lead@example.com", Password: "validPass123!", Role: "staff", FullName: "crew lead", Verified: true},
	{Username: "manager", Email: "manager@example.com", Password: "Manager123!", Role: "admin", FullName: "Store Manager", Verified: true},
	{Username: "ana", Email: "ana@example.com", Password: "Customer123!", Role: "customer", FullName: "Ana Souza", Verified: true},
}

// User is a stored account
type User struct {
	ID           string
	Username     string
	Email        string
	Role         models.Role
	FullName     string
	PasswordHash []byte
	Verified     bool
}

// Public is the user record returned to clients
func (u *User) Public() map[string]any {
	return map[string]any{
		"id":       u.ID,
		"username": u.Username,
		"email":    u.Email,
		"role":     string(u.Role),
		"fullName": u.FullName,
		"verified": u.Verified,
	}
}

// Users is the in-memory account directory
type Users struct {
	mu     sync.RWMutex
	byID   map[string]*User
	nextID int
	cost   int
}

// LoadSeed reads a YAML seed file of the form {users: [...]}
func LoadSeed(path string) ([]SeedUser, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read user seed: %w", err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse user seed %s: %w", path, err)
	}
	if len(f.Users) == 0 {
		return nil, fmt.Errorf("user seed %s has no users", path)
	}
	return f.Users, nil
}

// NewUsers hashes every seed password. cost <= 0 uses bcrypt.MinCost, which
// keeps startup fast for a dev server.
func NewUsers(seed []SeedUser, cost int) (*Users, error) {
	if cost <= 0 {
		cost = bcrypt.MinCost
	}
	u := &Users{byID: map[string]*User{}, cost: cost}
	for _, s := range seed {
		if s.Username == "" || s.Password == "" {
			return nil, fmt.Errorf("seed user %q needs a username and password", s.Username)
		}
		if _, err := u.Create(s.Username, s.Email, s.Password, s.FullName, models.ParseRole(s.Role), s.Verified); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// Create adds an account, failing when the username or email is taken
func (u *Users) Create(username, email, password, fullName string, role models.Role, verified bool) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	for _, existing := range u.byID {
		if strings.EqualFold(existing.Username, username) {
			return nil, &models.Error{Kind: models.ErrValidationFailed, Message: "account already exists",
				Fields: map[string]string{"username": "is already taken"}}
		}
		if email != "" && strings.EqualFold(existing.Email, email) {
			return nil, &models.Error{Kind: models.ErrValidationFailed, Message: "account already exists",
				Fields: map[string]string{"email": "is already registered"}}
		}
	}

	u.nextID++
	user := &User{
		ID:           strconv.Itoa(u.nextID),
		Username:     username,
		Email:        email,
		Role:         role,
		FullName:     fullName,
		PasswordHash: hash,
		Verified:     verified,
	}
	u.byID[user.ID] = user
	return user, nil
}

// Find looks a user up by username or email, case-insensitively
func (u *Users) Find(identifier string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	for _, user := range u.byID {
		if strings.EqualFold(user.Username, identifier) || (user.Email != "" && strings.EqualFold(user.Email, identifier)) {
			return user, true
		}
	}
	return nil, false
}

// Get looks a user up by id
func (u *Users) Get(id string) (*User, bool) {
	u.mu.RLock()
	defer u.mu.RUnlock()
	user, ok := u.byID[id]
	return user, ok
}

// Authenticate checks identifier and password
func (u *Users) Authenticate(identifier, password string) (*User, bool) {
	user, ok := u.Find(identifier)
	if !ok {
		return nil, false
	}
	if bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)) != nil {
		return nil, false
	}
	return user, true
}

// SetPassword replaces a user's password
func (u *Users) SetPassword(id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), u.cost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.byID[id]
	if !ok {
		return fmt.Errorf("user %s not found", id)
	}
	user.PasswordHash = hash
	return nil
}

// MarkVerified flags the user's email as confirmed
func (u *Users) MarkVerified(id string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.byID[id]; ok {
		user.Verified = true
	}
}
