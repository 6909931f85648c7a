package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/medicore/hospital-portal/app/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

/*
UsersStore Test Cases:

1. TestUsersStore_Create_Success
   - Successful user creation
   - ID and CreatedAt are set
   - All fields are saved correctly

2. TestUsersStore_Create_DatabaseError
   - Database error during insert
   - Error is returned

2a. TestUsersStore_Create_DuplicateEmail
    - Postgres unique violation (23505) maps to ErrDuplicateEmail

3. TestUsersStore_GetByEmail_Success
   - User found by email
   - All fields are returned correctly

4. TestUsersStore_GetByEmail_NotFound
   - User not found (sql.ErrNoRows)
   - Error is returned

5. TestUsersStore_GetByID_Success
   - User found by ID
   - All fields are returned correctly

6. TestUsersStore_GetByID_NotFound
   - User not found (sql.ErrNoRows)
   - Error is returned

7. TestUsersStore_Update_Success
   - User updated successfully

8. TestUsersStore_Delete_Success
   - User deleted successfully

9. TestUsersStore_Create_ScanError
   - Insert returns malformed row -> scan fails -> error returned

10. TestUsersStore_GetByEmail_ScanError
    - Select returns malformed row -> scan fails -> error returned
*/

// setupMockDB creates a mock database and UsersStore for testing
func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *UsersStore) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err, "Failed to create mock database")

	store := &UsersStore{db: db}

	return db, mock, store
}

// TestUsersStore_Create_Success tests successful user creation
func TestUsersStore_Create_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	user := &models.User{
		Name:         "Test Patient",
		Email:        "test@example.com",
		PasswordHash: "$2a$10$hashedpassword",
		Role:         models.RolePatient,
	}

	expectedID := int64(1)
	expectedCreatedAt := time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC)

	// Expect INSERT query
	mock.ExpectQuery(`INSERT INTO users \(name, email, password_hash, role\)
	VALUES \(\$1, \$2, \$3, \$4\)
	RETURNING id, created_at`).
		WithArgs(user.Name, user.Email, user.PasswordHash, user.Role).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).
			AddRow(expectedID, expectedCreatedAt))

	err := store.Create(context.Background(), user)

	// Assertions
	require.NoError(t, err, "Create should not return error")
	assert.Equal(t, expectedID, user.ID, "User ID should be set")
	assert.Equal(t, expectedCreatedAt, user.CreatedAt, "CreatedAt should be set")
	assert.NoError(t, mock.ExpectationsWereMet(), "All expectations should be met")
}

// TestUsersStore_Create_DatabaseError tests database error during creation
func TestUsersStore_Create_DatabaseError(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	user := &models.User{
		Name:         "Test Patient",
		Email:        "test@example.com",
		PasswordHash: "$2a$10$hashedpassword",
		Role:         models.RolePatient,
	}

	// Expect INSERT query to fail
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.Name, user.Email, user.PasswordHash, user.Role).
		WillReturnError(sql.ErrConnDone)

	err := store.Create(context.Background(), user)

	// Assertions
	assert.Error(t, err, "Create should return error")
	assert.True(t, err == sql.ErrConnDone, "Error should be connection done")
	assert.NoError(t, mock.ExpectationsWereMet(), "All expectations should be met")
}

// TestUsersStore_Create_DuplicateEmail tests the unique-violation mapping
func TestUsersStore_Create_DuplicateEmail(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	user := &models.User{
		Name:         "Test Patient",
		Email:        "taken@example.com",
		PasswordHash: "$2a$10$hashedpassword",
		Role:         models.RolePatient,
	}

	// Two registrations for the same address can both pass the service
	// layer's existence check; the second insert hits the unique index.
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.Name, user.Email, user.PasswordHash, user.Role).
		WillReturnError(&pgconn.PgError{
			Code:           "23505",
			ConstraintName: "users_email_key",
			Message:        `duplicate key value violates unique constraint "users_email_key"`,
		})

	err := store.Create(context.Background(), user)

	assert.ErrorIs(t, err, ErrDuplicateEmail, "unique violation should map to ErrDuplicateEmail")
	assert.NoError(t, mock.ExpectationsWereMet(), "All expectations should be met")
}

// TestUsersStore_GetByEmail_Success tests successful user retrieval by email
func TestUsersStore_GetByEmail_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	email := "doctor@example.com"
	expectedUser := &models.User{
		ID:           1,
		Name:         "Dr. Sarah Chen",
		Email:        email,
		PasswordHash: "$2a$10$hashedpassword",
		Role:         models.RoleDoctor,
		CreatedAt:    time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	// Expect SELECT query
	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, created_at
	FROM users WHERE email = \$1`).
		WithArgs(email).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at"}).
			AddRow(expectedUser.ID, expectedUser.Name, expectedUser.Email, expectedUser.PasswordHash, expectedUser.Role, expectedUser.CreatedAt))

	user, err := store.GetByEmail(context.Background(), email)

	// Assertions
	require.NoError(t, err, "GetByEmail should not return error")
	require.NotNil(t, user, "User should not be nil")
	assert.Equal(t, expectedUser.ID, user.ID)
	assert.Equal(t, expectedUser.Name, user.Name)
	assert.Equal(t, expectedUser.Email, user.Email)
	assert.Equal(t, expectedUser.PasswordHash, user.PasswordHash)
	assert.Equal(t, expectedUser.Role, user.Role)
	assert.Equal(t, expectedUser.CreatedAt, user.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet(), "All expectations should be met")
}

// TestUsersStore_GetByEmail_NotFound tests user not found scenario
func TestUsersStore_GetByEmail_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	email := "nonexistent@example.com"

	// Expect SELECT query to return no rows
	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, created_at
	FROM users WHERE email = \$1`).
		WithArgs(email).
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetByEmail(context.Background(), email)

	// Assertions
	assert.Error(t, err, "GetByEmail should return error")
	assert.True(t, err == sql.ErrNoRows, "Error should be sql.ErrNoRows")
	assert.Nil(t, user, "User should be nil")
	assert.NoError(t, mock.ExpectationsWereMet(), "All expectations should be met")
}

// TestUsersStore_GetByID_Success tests successful user retrieval by ID
func TestUsersStore_GetByID_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	id := int64(1)

	expectedUser := &models.User{
		ID:           1,
		Name:         "Admin User",
		Email:        "admin@example.com",
		PasswordHash: "$2a$10$hashedpassword",
		Role:         models.RoleAdmin,
		CreatedAt:    time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
	}

	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, created_at
	FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "email", "password_hash", "role", "created_at"}).
			AddRow(expectedUser.ID, expectedUser.Name, expectedUser.Email, expectedUser.PasswordHash, expectedUser.Role, expectedUser.CreatedAt))

	user, err := store.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, user)
	assert.Equal(t, expectedUser.ID, user.ID)
	assert.Equal(t, expectedUser.Name, user.Name)
	assert.Equal(t, expectedUser.Role, user.Role)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUsersStore_GetByID_NotFound tests user not found by ID
func TestUsersStore_GetByID_NotFound(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	id := int64(999)

	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, created_at
	FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnError(sql.ErrNoRows)

	user, err := store.GetByID(context.Background(), id)
	assert.Error(t, err)
	assert.True(t, err == sql.ErrNoRows)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUsersStore_Update_Success tests successful user update
func TestUsersStore_Update_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	user := &models.User{
		ID:           1,
		Name:         "Updated Name",
		Email:        "updated@example.com",
		PasswordHash: "$2a$10$newhash",
		Role:         models.RolePatient,
	}

	mock.ExpectExec(`UPDATE users SET name = \$1, email = \$2, password_hash = \$3, role = \$4 WHERE id = \$5`).
		WithArgs(user.Name, user.Email, user.PasswordHash, user.Role, user.ID).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Update(context.Background(), user)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// TestUsersStore_Delete_Success tests successful user deletion
func TestUsersStore_Delete_Success(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	id := int64(1)

	mock.ExpectExec(`DELETE FROM users WHERE id = \$1`).
		WithArgs(id).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.Delete(context.Background(), id)

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_Create_ScanError(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	user := &models.User{
		Name:         "Test Patient",
		Email:        "test@example.com",
		PasswordHash: "$2a$10$hash",
		Role:         models.RolePatient,
	}

	// Return row missing created_at to force scan error
	mock.ExpectQuery(`INSERT INTO users`).
		WithArgs(user.Name, user.Email, user.PasswordHash, user.Role).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))

	err := store.Create(context.Background(), user)

	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUsersStore_GetByEmail_ScanError(t *testing.T) {
	db, mock, store := setupMockDB(t)
	defer db.Close()

	email := "test@example.com"

	// Return a row with missing columns to trigger scan error
	mock.ExpectQuery(`SELECT id, name, email, password_hash, role, created_at
	FROM users WHERE email = \$1`).
		WithArgs(email).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).
			AddRow(1, "Test Patient"))

	user, err := store.GetByEmail(context.Background(), email)

	assert.Error(t, err)
	assert.Nil(t, user)
	assert.NoError(t, mock.ExpectationsWereMet())
}
