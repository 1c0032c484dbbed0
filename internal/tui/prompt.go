// Package tui holds the interactive terminal prompts.
package tui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/huh"
)

// ErrNotInteractive is returned when a prompt is needed but stdin is not a
// terminal.
var ErrNotInteractive = errors.New("input required but the terminal is not interactive")

// Credentials is an email/password pair entered at the login prompt.
type Credentials struct {
	Email    string
	Password string
}

// Registration is the data entered at the sign-up prompt.
type Registration struct {
	Credentials
	FirstName string
	LastName  string
	Company   string
}

// Prompter asks the user for input. Commands depend on this interface so
// tests can script answers.
type Prompter interface {
	Credentials(defaultEmail string) (Credentials, error)
	Registration(defaultEmail string) (Registration, error)
	Confirm(message string, defaultValue bool) (bool, error)
}

// HuhPrompter renders prompts with huh.
type HuhPrompter struct {
	// Accessible switches huh to plain line-based prompts for screen readers.
	Accessible bool
}

// Credentials asks for email and password. The password is never echoed.
func (p HuhPrompter) Credentials(defaultEmail string) (Credentials, error) {
	if !ShouldPrompt() {
		return Credentials{}, ErrNotInteractive
	}

	c := Credentials{Email: defaultEmail}
	form := huh.NewForm(huh.NewGroup(
		emailInput(&c.Email),
		passwordInput(&c.Password),
	)).WithAccessible(p.Accessible)

	if err := form.Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}
	c.Email = strings.TrimSpace(c.Email)
	return c, nil
}

// Registration asks for account details.
func (p HuhPrompter) Registration(defaultEmail string) (Registration, error) {
	if !ShouldPrompt() {
		return Registration{}, ErrNotInteractive
	}

	r := Registration{Credentials: Credentials{Email: defaultEmail}}
	var confirm string
	form := huh.NewForm(
		huh.NewGroup(
			emailInput(&r.Email),
			passwordInput(&r.Password),
			huh.NewInput().
				Title("Repeat password").
				EchoMode(huh.EchoModePassword).
				Value(&confirm).
				Validate(func(s string) error {
					if s != r.Password {
						return errors.New("passwords do not match")
					}
					return nil
				}),
		),
		huh.NewGroup(
			huh.NewInput().Title("First name").Value(&r.FirstName),
			huh.NewInput().Title("Last name").Value(&r.LastName),
			huh.NewInput().Title("Company").Value(&r.Company),
		),
	).WithAccessible(p.Accessible)

	if err := form.Run(); err != nil {
		return Registration{}, fmt.Errorf("prompt failed: %w", err)
	}
	r.Email = strings.TrimSpace(r.Email)
	return r, nil
}

// Confirm displays a yes/no confirmation prompt.
func (p HuhPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if !ShouldPrompt() {
		return defaultValue, nil
	}

	confirmed := defaultValue
	form := huh.NewForm(huh.NewGroup(
		huh.NewConfirm().Title(message).Value(&confirmed),
	)).WithAccessible(p.Accessible)

	if err := form.Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}
	return confirmed, nil
}

func emailInput(v *string) *huh.Input {
	return huh.NewInput().
		Title("Email").
		Placeholder("you@example.com").
		Value(v).
		Validate(ValidateEmail)
}

func passwordInput(v *string) *huh.Input {
	return huh.NewInput().
		Title("Password").
		EchoMode(huh.EchoModePassword).
		Value(v).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		})
}

// ValidateEmail does the minimal shape check the login form needs; the
// server is the authority.
func ValidateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	at := strings.Index(s, "@")
	if at <= 0 || at == len(s)-1 || strings.Count(s, "@") != 1 {
		return errors.New("email must look like name@domain")
	}
	return nil
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	fileInfo, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	// Check common CI environment variables
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"TRAVIS",
		"CIRCLECI",
		"BUILDKITE",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
