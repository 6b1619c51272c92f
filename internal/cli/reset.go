package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/terraincognita07/stepdash/internal/services"
)

// RunResetPasswordCommand gives the account a temporary password that has
// to be replaced at the next sign-in.
func RunResetPasswordCommand(auth *services.AuthService, email string, out io.Writer) error {
	if strings.TrimSpace(email) == "" {
		return fmt.Errorf("email is required")
	}

	temporaryPassword, err := auth.SetTemporaryPassword(email)
	if err != nil {
		return fmt.Errorf("reset password for %s: %w", strings.TrimSpace(email), err)
	}

	fmt.Fprintln(out, "✅ Password reset successful")
	fmt.Fprintf(out, "Temporary password: %s\n", temporaryPassword)
	fmt.Fprintln(out, "User must change password on next login.")
	return nil
}
