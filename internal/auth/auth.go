package auth

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID           int       `json:"id"`
	Username     string    `json:"username"`
	Email        string    `json:"email"`
	Password     string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	ProfileImage string    `json:"profileImage"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
}

// DisplayName is "First Last" when a first name is set, otherwise the username.
func (u User) DisplayName() string {
	if strings.TrimSpace(u.FirstName) != "" {
		return strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	return u.Username
}

// Users is the users table.
type Users struct {
	DB *sql.DB
}

const userColumns = `id, username, email, password, first_name, last_name, profile_image, role, created_at`

func scanUser(row interface{ Scan(...any) error }) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.Password, &u.FirstName, &u.LastName, &u.ProfileImage, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

func (s *Users) Create(ctx context.Context, u User, plainPassword string) (User, error) {
	hash, err := HashPassword(plainPassword)
	if err != nil {
		return User{}, err
	}
	if u.Role == "" {
		u.Role = RoleUser
	}
	u.CreatedAt = time.Now().UTC()

	err = s.DB.QueryRowContext(ctx, `
		INSERT INTO users (username, email, password, first_name, last_name, role, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, u.Username, u.Email, hash, u.FirstName, u.LastName, u.Role, u.CreatedAt).Scan(&u.ID)
	if err != nil {
		return User{}, err
	}
	u.Password = hash
	return u, nil
}

func (s *Users) Exists(ctx context.Context, username, email string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE username=$1 OR email=$2`, username, email,
	).Scan(&n)
	return n > 0, err
}

func (s *Users) ByID(ctx context.Context, id int) (User, error) {
	return scanUser(s.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=$1`, id))
}

// ByLogin finds a user by username or email.
func (s *Users) ByLogin(ctx context.Context, identifier string) (User, error) {
	return scanUser(s.DB.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE username=$1 OR email=$2`, identifier, identifier,
	))
}

func (s *Users) List(ctx context.Context, role string) ([]User, error) {
	query := `SELECT ` + userColumns + ` FROM users ORDER BY id`
	args := []any{}
	if role != "" {
		query = `SELECT ` + userColumns + ` FROM users WHERE role=$1 ORDER BY id`
		args = append(args, role)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *Users) Count(ctx context.Context, role string) (int, error) {
	var n int
	var err error
	if role == "" {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n)
	} else {
		err = s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM users WHERE role=$1`, role).Scan(&n)
	}
	return n, err
}

// UpdateProfile overwrites only the non-empty fields.
func (s *Users) UpdateProfile(ctx context.Context, id int, firstName, lastName, profileImage string) (User, error) {
	u, err := s.ByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if firstName != "" {
		u.FirstName = firstName
	}
	if lastName != "" {
		u.LastName = lastName
	}
	if profileImage != "" {
		u.ProfileImage = profileImage
	}

	_, err = s.DB.ExecContext(ctx, `
		UPDATE users SET first_name=$1, last_name=$2, profile_image=$3 WHERE id=$4
	`, u.FirstName, u.LastName, u.ProfileImage, id)
	return u, err
}

func (s *Users) SetRole(ctx context.Context, id int, role string) error {
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET role=$1 WHERE id=$2`, role, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

func (s *Users) SetPassword(ctx context.Context, id int, plainPassword string) error {
	hash, err := HashPassword(plainPassword)
	if err != nil {
		return err
	}
	res, err := s.DB.ExecContext(ctx, `UPDATE users SET password=$1 WHERE id=$2`, hash, id)
	if err != nil {
		return err
	}
	return expectOne(res)
}

// userDataTables are cleared child-first; users itself is handled by DeleteData.
var userDataTables = []string{"tasks", "study_sessions", "subjects", "goals", "achievements", "quizzes"}

// DeleteData removes everything a user owns in one transaction. With
// withAccount the analytics trail and the users row go too.
func (s *Users) DeleteData(ctx context.Context, id int, withAccount bool) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range userDataTables {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE user_id = $1`, id); err != nil {
			return err
		}
	}

	if withAccount {
		if _, err := tx.ExecContext(ctx, `DELETE FROM analytics_events WHERE user_id = $1`, id); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM users WHERE id = $1`, id)
		if err != nil {
			return err
		}
		if err := expectOne(res); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func expectOne(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}
