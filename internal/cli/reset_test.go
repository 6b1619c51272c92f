package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/terraincognita07/stepdash/internal/db"
	"github.com/terraincognita07/stepdash/internal/services"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func openCLITestDatabase(t *testing.T) (*gorm.DB, *db.Repositories) {
	t.Helper()

	database, err := db.OpenSQLite(filepath.Join(t.TempDir(), "stepdash-cli-test.db"), nil)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := database.DB()
	if err != nil {
		t.Fatalf("open sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})
	return database, db.NewRepositories(database)
}

func newCLIAuthService(repositories *db.Repositories) *services.AuthService {
	return services.NewAuthService(repositories.Users, []byte("stepdash-cli-test-secret-0123456789abcdef"), nil, "http://localhost:8080", nil)
}

func TestRunResetPasswordCommandSetsTemporaryPassword(t *testing.T) {
	_, repositories := openCLITestDatabase(t)
	auth := newCLIAuthService(repositories)
	if _, err := auth.SignUp("reset-cli@example.com", "StrongPass1", "StrongPass1"); err != nil {
		t.Fatalf("SignUp() unexpected error: %v", err)
	}

	var out bytes.Buffer
	if err := RunResetPasswordCommand(auth, " Reset-CLI@example.com ", &out); err != nil {
		t.Fatalf("RunResetPasswordCommand() unexpected error: %v", err)
	}

	var temporary string
	for _, line := range strings.Split(out.String(), "\n") {
		if value, ok := strings.CutPrefix(line, "Temporary password: "); ok {
			temporary = value
		}
	}
	if temporary == "" {
		t.Fatalf("expected temporary password in output, got %q", out.String())
	}

	user, err := repositories.Users.FindByNormalizedEmail("reset-cli@example.com")
	if err != nil {
		t.Fatalf("load user: %v", err)
	}
	if !user.MustChangePassword {
		t.Fatal("expected must_change_password to be set")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(temporary)); err != nil {
		t.Fatalf("expected stored hash to match printed password: %v", err)
	}
}

func TestRunResetPasswordCommandUnknownUser(t *testing.T) {
	_, repositories := openCLITestDatabase(t)
	auth := newCLIAuthService(repositories)

	err := RunResetPasswordCommand(auth, "ghost@example.com", &bytes.Buffer{})
	if !errors.Is(err, services.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestRunResetPasswordCommandRequiresEmail(t *testing.T) {
	_, repositories := openCLITestDatabase(t)

	if err := RunResetPasswordCommand(newCLIAuthService(repositories), "  ", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error for empty email")
	}
}
